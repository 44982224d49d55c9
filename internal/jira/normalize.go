package jira

import "strings"

// statusMapping expands common English status names to the Korean workflow
// status values actually used on the Jira server. Values the map does not
// know are passed through untouched, so native status names keep working.
var statusMapping = map[string][]string{
	"done":        {"완료", "완료(개발)", "완료(설계)", "DONE(BNF)", "개발완료(BNF)", "배포완료(BNF)", "검수완료(BNF)", "답변완료(BNF)", "기획/설계 완료(BNF)"},
	"completed":   {"완료", "완료(개발)", "완료(설계)", "DONE(BNF)", "개발완료(BNF)", "배포완료(BNF)", "검수완료(BNF)"},
	"in progress": {"진행중(개발)", "진행중(설계)", "처리중(BNF)", "개발(BNF)"},
	"to do":       {"할일", "할일(개발)", "할일(설계)", "할일(BNF)"},
	"todo":        {"할일", "할일(개발)", "할일(설계)", "할일(BNF)"},
	"open":        {"할일", "할일(개발)", "할일(설계)", "개발접수(BNF)"},
	"pending":     {"보류(BNF)", "패치대기(BNF)"},
	"in review":   {"설계검수(BNF)", "운영검수(BNF)"},
}

// doneStatusPriority orders the completion statuses probed when closing an
// issue. The first status with an available transition wins.
var doneStatusPriority = []string{
	"배포완료(BNF)",
	"DONE(BNF)",
	"검수완료(BNF)",
	"개발완료(BNF)",
	"답변완료(BNF)",
	"기획/설계 완료(BNF)",
	"완료(개발)",
	"완료(설계)",
	"완료",
}

// NormalizeStatuses expands English status names into the server's status
// vocabulary. Output preserves first-seen order and drops duplicates; a nil
// input stays nil.
func NormalizeStatuses(statuses []string) []string {
	if statuses == nil {
		return nil
	}

	seen := make(map[string]bool)
	normalized := make([]string, 0, len(statuses))

	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			normalized = append(normalized, s)
		}
	}

	for _, status := range statuses {
		key := strings.ToLower(strings.TrimSpace(status))
		if mapped, ok := statusMapping[key]; ok {
			for _, m := range mapped {
				add(m)
			}
		} else {
			add(status)
		}
	}
	return normalized
}
