package state

import (
	"encoding/json"
	"fmt"
)

// Merge applies a patch to a copy of base and returns the copy. The base
// document is never modified.
//
// Steps run in a fixed order, each only when the patch carries it:
//  1. current_phase is overwritten.
//  2. current_session is overwritten; an explicit nil writes null.
//  3. completed_sessions gains every id not already present, in patch
//     order. A missing or non-array value is replaced by an empty list first.
//  4. phases[<phase>].status is set, creating the phase record (and the
//     phases object) if needed. Other fields on the record are kept.
//
// Every other top-level field survives verbatim.
func Merge(base *Document, p Patch) (*Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	doc := base.Clone()

	if p.CurrentPhase != nil {
		if err := doc.set(KeyCurrentPhase, *p.CurrentPhase); err != nil {
			return nil, err
		}
	}

	if p.SetSession {
		var v any
		if p.CurrentSession != nil {
			v = *p.CurrentSession
		}
		if err := doc.set(KeyCurrentSession, v); err != nil {
			return nil, err
		}
	}

	if len(p.AddCompletedSessions) > 0 {
		if err := appendCompleted(doc, p.AddCompletedSessions); err != nil {
			return nil, err
		}
	}

	if p.PhaseStatus != nil {
		if err := setPhaseStatus(doc, p.PhaseStatus.Phase, p.PhaseStatus.Status); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func appendCompleted(doc *Document, ids []string) error {
	items := doc.completedItems()
	if items == nil {
		items = []json.RawMessage{}
	}

	seen := make(map[string]bool, len(items)+len(ids))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && !isNull(item) {
			seen[s] = true
		}
	}

	for _, id := range ids {
		if seen[id] {
			continue
		}
		raw, err := encode(id)
		if err != nil {
			return fmt.Errorf("encoding session id %q: %w", id, err)
		}
		items = append(items, raw)
		seen[id] = true
	}

	return doc.set(KeyCompletedSessions, items)
}

func setPhaseStatus(doc *Document, phase string, status Status) error {
	phases := doc.phases()

	record, err := phaseRecord(phases, phase)
	if err != nil {
		return err
	}
	statusRaw, err := encode(status)
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	record.Set(KeyStatus, statusRaw)

	recordRaw, err := marshalObject(record)
	if err != nil {
		return fmt.Errorf("encoding phase %q: %w", phase, err)
	}
	phases.Set(phase, recordRaw)

	phasesRaw, err := marshalObject(phases)
	if err != nil {
		return fmt.Errorf("encoding phases: %w", err)
	}
	doc.fields.Set(KeyPhases, phasesRaw)
	return nil
}

// phaseRecord returns the existing record for phase, or an empty one when
// it is missing or not an object.
func phaseRecord(phases *object, phase string) (*object, error) {
	raw, ok := phases.Get(phase)
	if !ok || !isObject(raw) {
		return NewDocument().fields, nil
	}
	record, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding phase %q: %w", phase, err)
	}
	return record, nil
}
