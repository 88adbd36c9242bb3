package model

import "testing"

func TestProcessPercentage(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		process int
		want    int
	}{
		{"empty request", 0, 0, 0},
		{"nothing processed", 10, 0, 0},
		{"half processed", 10, 5, 50},
		{"rounds up", 3, 2, 67},
		{"rounds down", 3, 1, 33},
		{"complete", 7, 7, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := &ProfileRequest{TotalUsername: tt.total, TotalProcess: tt.process}
			if got := request.ProcessPercentage(); got != tt.want {
				t.Errorf("ProcessPercentage() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequestStatusLifecycle(t *testing.T) {
	tests := []struct {
		status   RequestStatus
		terminal bool
		active   bool
	}{
		{StatusPending, false, true},
		{StatusProcessing, false, true},
		{StatusDone, true, false},
		{StatusCancelled, true, false},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := tt.status.Active(); got != tt.active {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.active)
		}
	}
}

func TestStatusViewProjection(t *testing.T) {
	request := &ProfileRequest{
		RequestID:     "req-1",
		ClientID:      "client-1",
		TotalUsername: 4,
		TotalProcess:  2,
		TotalError:    1,
		TotalSuccess:  1,
		ProcessStatus: StatusProcessing,
	}

	view := request.StatusView()
	if view.RequestID != "req-1" || view.ProcessStatus != StatusProcessing {
		t.Errorf("unexpected view: %+v", view)
	}
	if view.ProcessPercentage != 50 {
		t.Errorf("expected 50%%, got %d", view.ProcessPercentage)
	}
}
