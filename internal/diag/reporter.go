package diag

import "sync"

// Reporter - минимальный контракт получения диагностик от фаз.
// Реализации: BagReporter (кладёт в Bag), DedupReporter, LockedReporter.
type Reporter interface {
	Report(code Code, sev Severity, primary Pos, msg string)
}

// ReportWarning is a shortcut for SevWarning diagnostics. A nil reporter is allowed.
func ReportWarning(r Reporter, code Code, primary Pos, msg string) {
	if r == nil {
		return
	}
	r.Report(code, SevWarning, primary, msg)
}

// ReportInfo is a shortcut for SevInfo diagnostics. A nil reporter is allowed.
func ReportInfo(r Reporter, code Code, primary Pos, msg string) {
	if r == nil {
		return
	}
	r.Report(code, SevInfo, primary, msg)
}

// BagReporter - адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, primary Pos, msg string) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(New(sev, code, primary, msg))
}

// LockedReporter serializes calls to next. Use it when several goroutines
// report into one Bag.
type LockedReporter struct {
	mu   sync.Mutex
	next Reporter
}

func NewLockedReporter(next Reporter) *LockedReporter {
	return &LockedReporter{next: next}
}

func (r *LockedReporter) Report(code Code, sev Severity, primary Pos, msg string) {
	if r == nil || r.next == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next.Report(code, sev, primary, msg)
}
