package clinic

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{ErrDoctorNotFound, KindNotFound},
		{fmt.Errorf("load: %w", ErrQueueEntryNotFound), KindNotFound},
		{ErrDuplicateActive, KindDuplicateActive},
		{ErrEmptyQueue, KindEmptyQueue},
		{fmt.Errorf("%w: end before start", ErrValidation), KindValidation},
		{ErrDoctorBusy, KindInvalidState},
		{fmt.Errorf("call next: %w", ErrDoctorBusy), KindInvalidState},
		{ErrSlotUnavailable, KindInvalidState},
		{ErrConcurrentOperation, KindInvalidState},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}

	assert.Equal(t, "duplicate_active", KindDuplicateActive.String())
	assert.Equal(t, "internal_error", KindUnknown.String())
}

func TestFormatNumbers(t *testing.T) {
	day := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Q-20251006-007", FormatQueueNumber(day, 7))
	assert.Equal(t, "APT-20251006-120", FormatAppointmentNumber(day, 120))
	assert.Equal(t, "Q-20251006-1000", FormatQueueNumber(day, 1000))
}
