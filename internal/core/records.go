package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/valter-silva-au/commission-desk/pkg/models"
)

// RecordView is a task record in display order together with the state of
// its submit control.
type RecordView struct {
	Record     models.TaskRecord
	ShowSubmit bool
	Label      string
	Disabled   bool
	State      SubmitState
}

// FilterByTab returns the records visible under tab. TabAll passes every
// record; otherwise the record's status must equal the tab name ignoring case.
func FilterByTab(records []models.TaskRecord, tab models.Tab) []models.TaskRecord {
	out := make([]models.TaskRecord, 0, len(records))
	for _, r := range records {
		if tab == models.TabAll || strings.EqualFold(string(r.Status), string(tab)) {
			out = append(out, r)
		}
	}
	return out
}

// LastPendingComboCodes groups pending combo records by comboGroupId and
// returns, per group, the taskCode of the most recently created member.
func LastPendingComboCodes(records []models.TaskRecord) map[string]string {
	groups := make(map[string][]models.TaskRecord)
	for _, r := range records {
		if r.ComboGroupID == "" || !r.IsPending() {
			continue
		}
		groups[r.ComboGroupID] = append(groups[r.ComboGroupID], r)
	}

	last := make(map[string]string, len(groups))
	for id, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Created().Before(members[j].Created())
		})
		last[id] = members[len(members)-1].TaskCode
	}
	return last
}

// SortForDisplay orders records for the view without modifying the input.
// Records are ordered newest activity (startedAt, else createdAt) first. Then,
// within each pending combo group, the group's leading slots go to the
// submit-eligible members; members with equal canSubmit keep their input
// order. Other records keep their positions.
func SortForDisplay(records []models.TaskRecord) []models.TaskRecord {
	pos := make([]int, len(records))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(a, b int) bool {
		return records[pos[a]].Activity().After(records[pos[b]].Activity())
	})

	slots := make(map[string][]int)
	var order []string
	for slot, i := range pos {
		r := records[i]
		if r.ComboGroupID == "" || !r.IsPending() {
			continue
		}
		if _, ok := slots[r.ComboGroupID]; !ok {
			order = append(order, r.ComboGroupID)
		}
		slots[r.ComboGroupID] = append(slots[r.ComboGroupID], slot)
	}

	for _, id := range order {
		idx := slots[id]
		members := make([]int, len(idx))
		for k, slot := range idx {
			members[k] = pos[slot]
		}
		sort.SliceStable(members, func(a, b int) bool {
			ra, rb := records[members[a]], records[members[b]]
			if ra.CanSubmit != rb.CanSubmit {
				return ra.CanSubmit
			}
			return members[a] < members[b]
		})
		for k, slot := range idx {
			pos[slot] = members[k]
		}
	}

	out := make([]models.TaskRecord, len(pos))
	for k, i := range pos {
		out[k] = records[i]
	}
	return out
}

// ShowSubmit decides whether the submit control is rendered for r.
// submitted is the optimistic flag: the record was just submitted locally and
// the view keeps the control visible until the hold expires.
//
// The server's canSubmit flag and the client's last-pending-in-group check are
// independent alternatives; neither overrides the other.
func ShowSubmit(r models.TaskRecord, lastPending map[string]string, submitted bool) bool {
	actionable := (r.IsPending() && (!r.IsCombo || r.CanSubmit)) || (submitted && r.IsCompleted())
	if !actionable {
		return false
	}
	return r.ComboGroupID == "" || lastPending[r.ComboGroupID] == r.TaskCode || r.CanSubmit
}

// Reconcile turns the raw record list into the view for tab: filtered, combo
// grouped, sorted, with per-record submit controls derived from states.
// states may be nil.
func Reconcile(records []models.TaskRecord, tab models.Tab, states *SubmitController) []RecordView {
	filtered := FilterByTab(records, tab)
	lastPending := LastPendingComboCodes(filtered)
	sorted := SortForDisplay(filtered)

	views := make([]RecordView, len(sorted))
	for i, r := range sorted {
		state := SubmitIdle
		if states != nil {
			state = states.State(r.TaskCode)
		}
		views[i] = RecordView{
			Record:     r,
			ShowSubmit: ShowSubmit(r, lastPending, state == SubmitSucceeded),
			Label:      state.Label(),
			Disabled:   state.Busy(),
			State:      state,
		}
	}
	return views
}

// RecordKey returns a rendering key unique within a snapshot: combo members
// may share a taskCode, so the combo index disambiguates them.
func RecordKey(r models.TaskRecord) string {
	if r.ComboGroupID == "" {
		return r.TaskCode
	}
	return r.ComboGroupID + "/" + r.TaskCode + "#" + strconv.Itoa(r.ComboIndex)
}
