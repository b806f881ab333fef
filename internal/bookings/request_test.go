package bookings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

func validRequest() CreateRequest {
	return CreateRequest{
		ServiceID: uuid.NewString(),
		Date:      "2025-03-12",
		StartTime: "10:00",
		Name:      "Ana Silva",
		Email:     "ana@example.com",
		Phone:     "+1 (555) 123-4567",
	}
}

func TestCreateRequestValid(t *testing.T) {
	req := validRequest()
	age := 6
	req.ChildAge = &age
	assert.NoError(t, req.Validate())
}

func TestCreateRequestNormalize(t *testing.T) {
	req := validRequest()
	req.Name = "  Ana  "
	blank := "   "
	child := " Leo "
	req.Notes = &blank
	req.ChildName = &child

	req.Normalize()
	assert.Equal(t, "Ana", req.Name)
	assert.Nil(t, req.Notes)
	require.NotNil(t, req.ChildName)
	assert.Equal(t, "Leo", *req.ChildName)
}

func TestCreateRequestFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"bad service id", func(r *CreateRequest) { r.ServiceID = "svc-1" }, "serviceId"},
		{"bad date", func(r *CreateRequest) { r.Date = "12/03/2025" }, "date"},
		{"bad time", func(r *CreateRequest) { r.StartTime = "25:00" }, "startTime"},
		{"missing name", func(r *CreateRequest) { r.Name = "" }, "name"},
		{"bad email", func(r *CreateRequest) { r.Email = "ana-at-example" }, "email"},
		{"display name email", func(r *CreateRequest) { r.Email = "Ana <ana@example.com>" }, "email"},
		{"short phone", func(r *CreateRequest) { r.Phone = "123" }, "phone"},
		{"letters in phone", func(r *CreateRequest) { r.Phone = "555-CALL-NOW" }, "phone"},
		{"child too old", func(r *CreateRequest) { age := 30; r.ChildAge = &age }, "childAge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			require.ErrorIs(t, err, schedule.ErrInvalidInput)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.FieldErrors, tt.field)
		})
	}
}

func TestCreateRequestCollectsAllErrors(t *testing.T) {
	err := (&CreateRequest{}).Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	for _, f := range []string{"serviceId", "date", "startTime", "name", "email", "phone"} {
		assert.Contains(t, ve.FieldErrors, f)
	}
	assert.Contains(t, err.Error(), "date: ")
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Confirmed ")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, s)
	assert.True(t, s.Active())
	assert.False(t, StatusCancelled.Active())

	_, err = ParseStatus("done")
	assert.ErrorIs(t, err, schedule.ErrInvalidInput)
}
