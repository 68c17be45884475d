package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/99minutos/locker-system/internal/core/domain"
	"github.com/99minutos/locker-system/internal/core/ports"
)

func transition(f *fixture, id string, status domain.ParcelStatus, who domain.Requester) (*domain.Parcel, error) {
	return f.transitions.Transition(context.Background(), ports.TransitionInput{ParcelID: id, Status: string(status), Requester: who})
}

func TestTransition_ForwardOnly(t *testing.T) {
	f := newFixture(fill(10))
	p, err := f.create("user-1", domain.KindCOD, "TRK")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := transition(f, p.ID, domain.StatusCollected, user("user-1")); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("skipping arrived: expected ErrIllegalTransition, got %v", err)
	}

	got, err := transition(f, p.ID, domain.StatusArrived, user("user-1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusArrived || got.LockerNumber != p.LockerNumber {
		t.Errorf("after arrived: %+v", got)
	}

	if _, err := transition(f, p.ID, domain.StatusInTransit, user("user-1")); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("moving backwards: expected ErrIllegalTransition, got %v", err)
	}

	got, err = transition(f, p.ID, domain.StatusCollected, user("user-1"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusCollected || got.HoldsLocker() {
		t.Errorf("collected parcel should release its locker: %+v", got)
	}
	if lockers, _ := f.repo.ActiveLockers(context.Background()); len(lockers) != 0 {
		t.Errorf("active lockers after collection: %v", lockers)
	}

	if _, err := transition(f, p.ID, domain.StatusArrived, user("user-1")); !errors.Is(err, domain.ErrIllegalTransition) {
		t.Fatalf("collected is terminal: expected ErrIllegalTransition, got %v", err)
	}

	// Activity is shipped in the background, so only the counts are stable.
	f.activity.Wait()
	counts := map[domain.ActivityAction]int{}
	for _, a := range f.activitySink.actions() {
		counts[a]++
	}
	if counts[domain.ActionAdded] != 1 || counts[domain.ActionStatusChanged] != 2 || len(counts) != 2 {
		t.Errorf("activity: got %v", counts)
	}
}

func TestTransition_Rejections(t *testing.T) {
	f := newFixture(fill(10))
	p, err := f.create("user-1", domain.KindNonCOD, "TRK")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		in      ports.TransitionInput
		wantErr error
	}{
		{"unknown status", ports.TransitionInput{ParcelID: p.ID, Status: "lost", Requester: user("user-1")}, domain.ErrInvalidInput},
		{"missing id", ports.TransitionInput{Status: "arrived", Requester: user("user-1")}, domain.ErrInvalidInput},
		{"unknown parcel", ports.TransitionInput{ParcelID: "nope", Status: "arrived", Requester: user("user-1")}, domain.ErrParcelNotFound},
		{"not the owner", ports.TransitionInput{ParcelID: p.ID, Status: "arrived", Requester: user("user-2")}, domain.ErrForbidden},
		{"operators do not transition", ports.TransitionInput{ParcelID: p.ID, Status: "arrived", Requester: operator}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transitions.Transition(context.Background(), tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	stored, _ := f.repo.FindByID(context.Background(), p.ID)
	if stored.Status != domain.StatusInTransit {
		t.Errorf("rejected transitions changed the status to %s", stored.Status)
	}
}

// racingRepo applies a concurrent transition right before the conditional
// update runs.
type racingRepo struct {
	*memRepo
	to domain.ParcelStatus
}

func (r *racingRepo) UpdateStatus(ctx context.Context, id string, from, to domain.ParcelStatus) (*domain.Parcel, error) {
	if _, err := r.memRepo.UpdateStatus(ctx, id, from, r.to); err != nil {
		return nil, err
	}
	return r.memRepo.UpdateStatus(ctx, id, from, to)
}

func TestTransition_StatusConflict(t *testing.T) {
	tests := []struct {
		name    string
		raceTo  domain.ParcelStatus
		wantErr error
	}{
		// The same write landed already, e.g. a retried request.
		{"same target", domain.StatusArrived, nil},
		{"different target", domain.StatusCollected, domain.ErrIllegalTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(fill(10))
			f.repo.put(domain.Parcel{ID: "p1", OwnerID: "user-1", Kind: domain.KindCOD, LockerNumber: 1, Status: domain.StatusInTransit})

			repo := &racingRepo{memRepo: f.repo, to: tt.raceTo}
			mirror := NewDualStoreMirror(repo, f.mirrorStore, &memSequence{}, nil, f.mirror.log)
			mirror.SetRetryPolicy(fastRetry)
			svc := NewTransitionService(repo, mirror, nil, f.mirror.log)

			got, err := svc.Transition(context.Background(), ports.TransitionInput{ParcelID: "p1", Status: "arrived", Requester: user("user-1")})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Status != domain.StatusArrived {
					t.Errorf("got status %s", got.Status)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTransitionBatch_PartialResults(t *testing.T) {
	f := newFixture(fill(10))
	own1, _ := f.create("user-1", domain.KindCOD, "A")
	own2, _ := f.create("user-1", domain.KindNonCOD, "B")
	foreign, _ := f.create("user-2", domain.KindNonCOD, "C")
	done, _ := f.create("user-1", domain.KindNonCOD, "D")
	if _, err := transition(f, done.ID, domain.StatusArrived, user("user-1")); err != nil {
		t.Fatal(err)
	}

	ids := []string{own1.ID, foreign.ID, own2.ID, "missing", done.ID}
	res, err := f.transitions.TransitionBatch(context.Background(), ports.BatchTransitionInput{
		ParcelIDs: ids,
		Status:    "arrived",
		Requester: user("user-1"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Succeeded != 2 || res.Failed != 3 {
		t.Errorf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	want := []error{nil, domain.ErrForbidden, nil, domain.ErrParcelNotFound, domain.ErrIllegalTransition}
	for i, it := range res.Items {
		if it.ParcelID != ids[i] {
			t.Errorf("item %d: results must keep request order, got %s", i, it.ParcelID)
		}
		if want[i] == nil {
			if !it.OK || it.Err != nil {
				t.Errorf("item %d: expected success, got %v", i, it.Err)
			}
			continue
		}
		if it.OK || !errors.Is(it.Err, want[i]) {
			t.Errorf("item %d: expected %v, got %v", i, want[i], it.Err)
		}
	}
}

func TestTransitionBatch_Validation(t *testing.T) {
	f := newFixture(fill(10))
	tooMany := make([]string, maxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "id"
	}

	tests := []struct {
		name string
		in   ports.BatchTransitionInput
		msg  string
	}{
		{"empty", ports.BatchTransitionInput{Status: "arrived", Requester: user("u")}, "no parcel ids"},
		{"too many", ports.BatchTransitionInput{ParcelIDs: tooMany, Status: "arrived", Requester: user("u")}, "at most"},
		{"bad status", ports.BatchTransitionInput{ParcelIDs: []string{"a"}, Status: "lost", Requester: user("u")}, "unknown status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transitions.TransitionBatch(context.Background(), tt.in)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q should mention %q", err, tt.msg)
			}
		})
	}
}
