package activity

import (
	"sort"
	"time"

	"github.com/maktabhq/maktab/core/student"
)

// CutoffDate computes the lower date bound of a time range relative to now.
// ok is false for RangeAll (no lower bound).
func CutoffDate(timeRange TimeRange, now time.Time) (cutoff time.Time, ok bool) {
	now = now.UTC()
	switch timeRange {
	case RangeToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, -1, 0), true
	default: // RangeAll
		return time.Time{}, false
	}
}

// Aggregate computes the ranked leaderboard for a roster from raw activity
// rows. It is a pure function: identical inputs always produce identical
// output. Rows for students outside the roster, or scoped to a different
// madrassah than their student, are ignored. Ranks are 1-based positions in
// the sorted, filtered list; the sort is stable so equal sort keys keep
// roster insertion order.
func Aggregate(roster []student.Student, rows []Record, filters LeaderboardFilters) []LeaderboardEntry {
	filters.Clean()

	// one zeroed bucket per roster student, in roster order
	entries := make([]LeaderboardEntry, 0, len(roster))
	madrassahs := make(map[string]string, len(roster))
	index := make(map[string]int, len(roster))
	for _, std := range roster {
		index[std.ID] = len(entries)
		madrassahs[std.ID] = std.MadrassahID
		entries = append(entries, LeaderboardEntry{StudentID: std.ID, Name: std.Name})
	}

	for _, row := range rows {
		i, ok := index[row.StudentID]
		if !ok {
			continue
		}
		// tenant guard; a misfiled row must never leak across madrassahs
		if row.MadrassahID != "" && row.MadrassahID != madrassahs[row.StudentID] {
			continue
		}
		entry := &entries[i]
		switch row.Type {
		case TypeSabaq:
			entry.Sabaqs++
		case TypeSabaqPara:
			entry.SabaqPara++
		case TypeDhor:
			entry.Dhor++
		default:
			continue
		}
		if row.Date.After(entry.LastActivity) {
			entry.LastActivity = row.Date
		}
	}
	for i := range entries {
		entries[i].TotalPoints = entries[i].Sabaqs + entries[i].SabaqPara + entries[i].Dhor
	}

	entries = filterEntries(entries, filters)

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch filters.MetricPriority {
		case MetricSabaq:
			return a.Sabaqs > b.Sabaqs
		case MetricSabaqPara:
			return a.SabaqPara > b.SabaqPara
		default: // MetricTotal: sabaqs first, ties broken by sabaqs+sabaqPara
			if a.Sabaqs != b.Sabaqs {
				return a.Sabaqs > b.Sabaqs
			}
			return a.Sabaqs+a.SabaqPara > b.Sabaqs+b.SabaqPara
		}
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func filterEntries(entries []LeaderboardEntry, filters LeaderboardFilters) []LeaderboardEntry {
	if filters.Participation == ParticipationAll && filters.Completion == CompletionAll {
		return entries
	}
	kept := entries[:0]
	for _, entry := range entries {
		active := entry.TotalPoints > 0
		if filters.Participation == ParticipationActive && !active {
			continue
		}
		if filters.Participation == ParticipationInactive && active {
			continue
		}

		complete := entry.Sabaqs > 0 && entry.SabaqPara > 0 && entry.Dhor > 0
		if filters.Completion == CompletionComplete && !complete {
			continue
		}
		if filters.Completion == CompletionIncomplete && complete {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}
