// Package cascade deletes an owner record together with its dependents.
//
// Before the owner is removed a pending-deletion marker listing every
// dependent is written to the cascades collection; it is cleared once all
// dependents are gone. Markers left behind by failures or crashes are
// retried by the Reaper.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/flatapi/internal/logger"
	"github.com/patric-chuzhbe/flatapi/internal/metrics"
	"github.com/patric-chuzhbe/flatapi/internal/recordstore"
)

// MarkersCollection holds pending-deletion markers.
const MarkersCollection = "cascades"

// Dependent addresses one record owned by the deleted owner.
type Dependent struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Marker records an owner deletion whose dependents may still exist.
type Marker struct {
	OwnerCollection string      `json:"ownerCollection"`
	OwnerID         string      `json:"ownerId"`
	Dependents      []Dependent `json:"dependents"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// ID is the marker's record id.
func (m *Marker) ID() string {
	return MarkerID(m.OwnerCollection, m.OwnerID)
}

// MarkerID derives the marker id of an owner.
func MarkerID(ownerCollection, ownerID string) string {
	return ownerCollection + "_" + ownerID
}

type store interface {
	Create(ctx context.Context, collection, id string, record any) error
	Read(ctx context.Context, collection, id string, dst any) error
	Update(ctx context.Context, collection, id string, record any) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]string, error)
}

// Reaper runs cascades and retries the unfinished ones in the background.
type Reaper struct {
	db                       store
	queue                    chan string
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
	log                      *zap.SugaredLogger
}

// New returns a Reaper. Run must be called for deferred work to be retried.
func New(db store, channelCapacity int, delayBetweenQueueFetches time.Duration) *Reaper {
	return &Reaper{
		db:                       db,
		queue:                    make(chan string, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
		log:                      logger.Named("cascade"),
	}
}

// Cascade deletes the owner and then its dependents. Once the owner is gone
// the call succeeds even if some dependents could not be removed yet; those
// are left to the background retry.
func (r *Reaper) Cascade(ctx context.Context, ownerCollection, ownerID string, dependents []Dependent) error {
	marker := &Marker{
		OwnerCollection: ownerCollection,
		OwnerID:         ownerID,
		Dependents:      uniqueDependents(dependents),
		CreatedAt:       time.Now(),
	}

	if err := r.writeMarker(ctx, marker); err != nil {
		return err
	}

	if err := r.db.Delete(ctx, ownerCollection, ownerID); err != nil {
		if markerErr := r.db.Delete(ctx, MarkersCollection, marker.ID()); markerErr != nil && !errors.Is(markerErr, recordstore.ErrNotFound) {
			r.log.Warnw("could not clear the marker of an aborted cascade", "marker", marker.ID(), zap.Error(markerErr))
		}
		return err
	}

	if err := r.finish(ctx, marker); err != nil {
		r.log.Warnw("cascade deferred", "owner", ownerID, zap.Error(err))
		metrics.RecordCascade("deferred")
		r.Enqueue(marker.ID())
		return nil
	}

	metrics.RecordCascade("completed")

	return nil
}

func (r *Reaper) writeMarker(ctx context.Context, marker *Marker) error {
	err := r.db.Create(ctx, MarkersCollection, marker.ID(), marker)
	if !errors.Is(err, recordstore.ErrAlreadyExists) {
		if err != nil {
			return fmt.Errorf("in internal/cascade/cascade.go/writeMarker(): error while `r.db.Create()` calling: %w", err)
		}
		return nil
	}

	// An earlier cascade of the same owner is still pending: keep its work.
	var previous Marker
	if err := r.db.Read(ctx, MarkersCollection, marker.ID(), &previous); err == nil {
		marker.Dependents = uniqueDependents(append(previous.Dependents, marker.Dependents...))
	}
	if err := r.db.Update(ctx, MarkersCollection, marker.ID(), marker); err != nil {
		return fmt.Errorf("in internal/cascade/cascade.go/writeMarker(): error while `r.db.Update()` calling: %w", err)
	}

	return nil
}

// finish removes the dependents of a marker and then the marker itself.
func (r *Reaper) finish(ctx context.Context, marker *Marker) error {
	var errs []error
	for _, dependent := range marker.Dependents {
		err := r.db.Delete(ctx, dependent.Collection, dependent.ID)
		if err != nil && !errors.Is(err, recordstore.ErrNotFound) {
			errs = append(errs, fmt.Errorf("deleting %s/%s: %w", dependent.Collection, dependent.ID, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	err := r.db.Delete(ctx, MarkersCollection, marker.ID())
	if err != nil && !errors.Is(err, recordstore.ErrNotFound) {
		return fmt.Errorf("in internal/cascade/cascade.go/finish(): error while `r.db.Delete()` calling: %w", err)
	}

	return nil
}

// Enqueue schedules a marker for the next retry. When the queue is full the
// marker is left for the next sweep.
func (r *Reaper) Enqueue(markerID string) {
	select {
	case r.queue <- markerID:
	default:
	}
}

// ListenErrors passes every background failure to callback.
func (r *Reaper) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

func (r *Reaper) reportError(err error) {
	select {
	case r.errorChannel <- err:
	default:
		r.log.Errorw("cascade error dropped", zap.Error(err))
	}
}

// Sweep retries every marker in the store and returns how many completed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	ids, err := r.db.List(ctx, MarkersCollection)
	if err != nil {
		return 0, fmt.Errorf("in internal/cascade/cascade.go/Sweep(): error while `r.db.List()` calling: %w", err)
	}

	return r.process(ctx, ids)
}

func (r *Reaper) process(ctx context.Context, markerIDs []string) (int, error) {
	completed := 0
	var errs []error
	for _, id := range markerIDs {
		var marker Marker
		err := r.db.Read(ctx, MarkersCollection, id, &marker)
		if errors.Is(err, recordstore.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := r.finish(ctx, &marker); err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.RecordCascade("recovered")
		completed++
	}

	return completed, errors.Join(errs...)
}

// Run sweeps once for markers left by a previous process, then retries
// queued markers every delayBetweenQueueFetches until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	go func() {
		if completed, err := r.Sweep(ctx); err != nil {
			r.reportError(err)
		} else if completed > 0 {
			r.log.Infof("recovered %d unfinished cascades", completed)
		}

		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()

		var pending []string

		for {
			select {
			case <-ctx.Done():
				return
			case id := <-r.queue:
				pending = append(pending, id)
			case <-ticker.C:
				if len(pending) == 0 {
					continue
				}
				pending = funk.UniqString(pending)
				completed, err := r.process(ctx, pending)
				if err != nil {
					r.reportError(err)
					continue
				}
				r.log.Infof("processed %d deferred cascades", completed)
				pending = nil
			}
		}
	}()
}

func uniqueDependents(dependents []Dependent) []Dependent {
	seen := map[Dependent]bool{}
	result := make([]Dependent, 0, len(dependents))
	for _, dependent := range dependents {
		if seen[dependent] {
			continue
		}
		seen[dependent] = true
		result = append(result, dependent)
	}

	return result
}
