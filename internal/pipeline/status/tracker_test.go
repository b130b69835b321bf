package status

import (
	"sync"
	"testing"
)

func TestTracker_Concurrency(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tracker.TaskStarted()
			switch i % 4 {
			case 0:
				tracker.RateLimited()
				tracker.TaskFinished(false)
			case 1:
				tracker.APIError()
				tracker.TaskFinished(false)
			default:
				tracker.TaskFinished(true)
			}
			tracker.Snapshot()
		}(i)
	}
	wg.Wait()

	c := tracker.Snapshot()
	if c.Started != 100 {
		t.Errorf("Expected 100 started, got %d", c.Started)
	}
	if c.Succeeded != 50 || c.Failed != 50 {
		t.Errorf("Expected 50/50 split, got succeeded=%d failed=%d", c.Succeeded, c.Failed)
	}
	if c.RateLimited != 25 || c.APIErrors != 25 {
		t.Errorf("Expected 25 rate limited and 25 api errors, got %d and %d", c.RateLimited, c.APIErrors)
	}
	if !c.Drained() {
		t.Errorf("Expected drained counters, got %+v", c)
	}
}

func TestTracker_InProgressTracksTasks(t *testing.T) {
	tracker := NewTracker()

	tracker.TaskStarted()
	tracker.TaskStarted()
	tracker.OtherError() // a retryable failure does not release the task

	c := tracker.Snapshot()
	if c.InProgress != 2 {
		t.Errorf("InProgress = %d, want 2", c.InProgress)
	}
	if c.Drained() {
		t.Error("Drained() = true with tasks in progress")
	}

	tracker.TaskFinished(true)
	tracker.TaskFinished(false)

	c = tracker.Snapshot()
	if c.InProgress != 0 || c.Started != c.Succeeded+c.Failed {
		t.Errorf("unexpected counters after drain: %+v", c)
	}
	if c.OtherErrors != 1 {
		t.Errorf("OtherErrors = %d, want 1", c.OtherErrors)
	}
}

func TestTracker_SnapshotIsConsistent(t *testing.T) {
	tracker := NewTracker()
	stop := make(chan struct{})

	var writers sync.WaitGroup
	for i := 0; i < 8; i++ {
		writers.Add(1)
		go func(i int) {
			defer writers.Done()
			for j := 0; j < 2000; j++ {
				tracker.TaskStarted()
				tracker.TaskFinished((i+j)%2 == 0)
			}
		}(i)
	}

	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			c := tracker.Snapshot()
			if c.Started != c.InProgress+c.Succeeded+c.Failed {
				t.Errorf("inconsistent snapshot: %+v", c)
				return
			}
		}
	}()

	writers.Wait()
	close(stop)
	reader.Wait()

	if c := tracker.Snapshot(); c.Started != 16000 || !c.Drained() {
		t.Errorf("unexpected final counters: %+v", c)
	}
}
