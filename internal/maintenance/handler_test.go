package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	res Result
	err error
}

func (s stubRunner) RunIfDue(context.Context, time.Time) (Result, error) { return s.res, s.err }

func TestRunBackupHandler(t *testing.T) {
	tests := []struct {
		name   string
		runner stubRunner
		status int
		want   map[string]any
	}{
		{
			name:   "not due",
			runner: stubRunner{},
			status: http.StatusOK,
			want:   map[string]any{"success": true, "due": false},
		},
		{
			name:   "ran",
			runner: stubRunner{res: Result{Due: true, Key: "backups/x.json", Bookings: 3, ReminderTasks: 6}},
			status: http.StatusOK,
			want:   map[string]any{"success": true, "due": true, "key": "backups/x.json"},
		},
		{
			name:   "bucket missing",
			runner: stubRunner{res: Result{Due: true}, err: ErrArchiveDisabled},
			status: http.StatusInternalServerError,
			want:   map[string]any{"success": false, "error": "backup bucket not configured"},
		},
		{
			name:   "failure",
			runner: stubRunner{err: errors.New("redis down")},
			status: http.StatusInternalServerError,
			want:   map[string]any{"success": false, "error": "backup failed"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(tt.runner, nil).RunBackup(rec, httptest.NewRequest(http.MethodPost, "/cron/backup", nil))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			for k, v := range tt.want {
				assert.Equal(t, v, body[k], k)
			}
		})
	}
}
