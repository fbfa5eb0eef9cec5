package realtimesvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/stream"
)

func newTestConf(t *testing.T, addr string) *core.Config {
	t.Helper()
	var conf core.Config
	conf.Redis.Addr = addr
	conf.Redis.ChangeChannel = "maktab.changes.test"
	return &conf
}

func TestBridgeReplicatesEvents(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	hubA := stream.NewHub()
	hubB := stream.NewHub()
	defer hubA.Close()
	defer hubB.Close()

	bridgeA := NewBridge(newTestConf(t, srv.Addr()), hubA, core.NopLogger{})
	bridgeB := NewBridge(newTestConf(t, srv.Addr()), hubB, core.NopLogger{})
	defer bridgeA.Close()
	defer bridgeB.Close()

	bridgeA.Start(ctx)
	bridgeB.Start(ctx)
	time.Sleep(50 * time.Millisecond) // let subscriptions settle

	sub := hubB.Subscribe(4)
	defer sub.Close()

	hubA.Publish(stream.NewEvent(stream.TableStudent, stream.EventInsert, "mad-1"))

	select {
	case evt := <-sub.C:
		assert.Equal(t, stream.TableStudent, evt.Table)
		assert.Equal(t, stream.EventInsert, evt.Type)
		assert.Equal(t, "mad-1", evt.MadrassahID)
		assert.True(t, evt.IsRemote())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replicated event")
	}
}

func TestBridgeSkipsOwnEvents(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	hub := stream.NewHub()
	defer hub.Close()

	bridge := NewBridge(newTestConf(t, srv.Addr()), hub, core.NopLogger{})
	defer bridge.Close()

	bridge.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	sub := hub.Subscribe(4)
	defer sub.Close()

	hub.Publish(stream.NewEvent(stream.TableMessage, stream.EventInsert, "mad-1"))

	// the local subscriber sees the original event once; the bridge must
	// not replay it back through redis.
	select {
	case evt := <-sub.C:
		require.False(t, evt.IsRemote())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for local event")
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("unexpected echoed event: %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBridgeRestartReplacesSubscription(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	hub := stream.NewHub()
	defer hub.Close()

	bridge := NewBridge(newTestConf(t, srv.Addr()), hub, core.NopLogger{})
	defer bridge.Close()

	bridge.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	bridge.Start(ctx) // replaces the first subscription
	time.Sleep(50 * time.Millisecond)

	sub := hub.Subscribe(4)
	defer sub.Close()

	srv.Publish("maktab.changes.test",
		`{"origin":"other","event":{"table":"student","type":"update","madrassah_id":"mad-2"}}`)

	// delivered exactly once even after the restart
	select {
	case evt := <-sub.C:
		assert.Equal(t, stream.TableStudent, evt.Table)
		assert.Equal(t, stream.EventUpdate, evt.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replicated event")
	}
	select {
	case evt := <-sub.C:
		t.Fatalf("event delivered twice: %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}
