package core

import "testing"

func TestOrderingClause(t *testing.T) {
	tests := []struct {
		name     string
		ordering []DBOrdering
		want     string
	}{
		{name: "empty", ordering: nil, want: ""},
		{
			name:     "single ascending",
			ordering: []DBOrdering{{Field: "created_at", Ascending: true}},
			want:     " ORDER BY created_at ASC",
		},
		{
			name: "multiple",
			ordering: []DBOrdering{
				{Field: "date"},
				{Field: "name", Ascending: true},
			},
			want: " ORDER BY date DESC, name ASC",
		},
		{
			name: "non-identifier fields dropped",
			ordering: []DBOrdering{
				{Field: "name; DROP TABLE app_user--"},
				{Field: "created_at", Ascending: true},
			},
			want: " ORDER BY created_at ASC",
		},
		{
			name:     "all fields dropped",
			ordering: []DBOrdering{{Field: "1=1"}},
			want:     "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OrderingClause(tt.ordering); got != tt.want {
				t.Errorf("OrderingClause() = %q, want %q", got, tt.want)
			}
		})
	}
}
