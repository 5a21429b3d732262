// Copyright 2025 MH Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package health

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"all healthy", []string{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []string{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []string{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"no checkers", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewManager("mh-assistant", "test", zaptest.NewLogger(t))
			for i, status := range tt.statuses {
				s := status
				manager.AddCheckerFunc(string(rune('a'+i)), func(ctx context.Context) CheckResult {
					return CheckResult{Status: s}
				})
			}

			resp := manager.Check(context.Background())
			if resp.Status != tt.want {
				t.Errorf("Expected status %s, got %s", tt.want, resp.Status)
			}
			if len(resp.Dependencies) != len(tt.statuses) {
				t.Errorf("Expected %d dependencies, got %d", len(tt.statuses), len(resp.Dependencies))
			}
		})
	}
}

func TestDatabaseHealthChecker(t *testing.T) {
	ok := DatabaseHealthChecker("sessions", func(ctx context.Context) error { return nil })
	result := ok.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", result.Status)
	}

	failing := DatabaseHealthChecker("sessions", func(ctx context.Context) error {
		return errors.New("locked")
	})
	result = failing.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", result.Status)
	}
	if result.Error == "" {
		t.Error("Expected error detail")
	}
}

func TestIndexHealthChecker(t *testing.T) {
	populated := IndexHealthChecker(func() int { return 42 })
	if result := populated.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("Expected healthy for populated index, got %s", result.Status)
	}

	empty := IndexHealthChecker(func() int { return 0 })
	if result := empty.Check(context.Background()); result.Status != StatusDegraded {
		t.Errorf("Expected degraded for empty index, got %s", result.Status)
	}
}
