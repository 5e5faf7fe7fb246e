package awx

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

// SyncState is the outcome of waiting for a project update
type SyncState int

const (
	// SyncCompleted means the project reported no update in flight.
	SyncCompleted SyncState = iota
	// SyncInProgress means every check still saw an update in flight.
	SyncInProgress
	// SyncLookupFailed means a project detail fetch failed.
	SyncLookupFailed
)

func (s SyncState) String() string {
	switch s {
	case SyncCompleted:
		return "completed"
	case SyncInProgress:
		return "in progress"
	case SyncLookupFailed:
		return "lookup failed"
	default:
		return "unknown"
	}
}

// SyncResult describes how a wait for a project update ended
type SyncResult struct {
	State  SyncState
	Checks int
	// Err is the fetch error when State is SyncLookupFailed.
	Err error
}

// WaitForProjectUpdate polls the project up to attempts times, interval
// apart, until it no longer reports a running SCM update. Running out of
// attempts is not an error; it is reported as SyncInProgress. The returned
// error is only set when ctx is done first.
func (c *Client) WaitForProjectUpdate(ctx context.Context, projectID, attempts int, interval time.Duration) (SyncResult, error) {
	var result SyncResult

	backoff := wait.Backoff{
		Duration: interval,
		Factor:   1,
		Steps:    attempts,
	}

	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		result.Checks++

		project, err := c.GetProject(ctx, projectID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			result.State = SyncLookupFailed
			result.Err = err
			return true, nil
		}

		if !project.Updating() {
			result.State = SyncCompleted
			if project.Summary != nil && project.Summary.LastUpdate != nil {
				klog.V(2).Infof("Project %d is %s, last update %d %s",
					projectID, project.Status, project.Summary.LastUpdate.ID, project.Summary.LastUpdate.Status)
			}
			return true, nil
		}

		status := "running"
		if project.Summary != nil && project.Summary.CurrentUpdate != nil {
			status = project.Summary.CurrentUpdate.Status
		}
		klog.V(2).Infof("Project %d update %s is %s (check %d/%d)",
			projectID, project.Related.CurrentUpdate, status, result.Checks, attempts)
		return false, nil
	})

	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return result, ctx.Err()
	case wait.Interrupted(err):
		result.State = SyncInProgress
		return result, nil
	default:
		return result, err
	}
}
