package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adam-a-i/ruya/internal/domain"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("session x: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrTurnInFlight, http.StatusConflict},
		{domain.ErrActiveVersionChanged, http.StatusConflict},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("mutation aborted: %w", domain.ErrBadCollaboratorReply), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}
