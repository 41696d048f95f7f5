package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provflow/domain/provisioning"
)

func TestNotifyFlags_Notification(t *testing.T) {
	tests := []struct {
		name    string
		flags   notifyFlags
		want    provisioning.Notification
		wantErr error
	}{
		{
			name:  "nchl",
			flags: notifyFlags{scheme: "NCHL", amount: 250, merchantCode: "M1", storeID: "S1", terminalID: "T1"},
			want:  provisioning.NewNCHLNotification(250, "M1", "S1", "T1"),
		},
		{
			name:  "fonepay",
			flags: notifyFlags{scheme: "fonepay", amount: 100, merchantID: "9876", terminalID: "T1"},
			want:  provisioning.NewFonepayNotification(100, "9876", "T1"),
		},
		{
			name:    "unknown_scheme",
			flags:   notifyFlags{scheme: "visa", amount: 100},
			wantErr: provisioning.ErrUnknownScheme,
		},
		{
			name:    "missing_terminal",
			flags:   notifyFlags{scheme: "fonepay", amount: 100, merchantID: "9876"},
			wantErr: provisioning.ErrInvalidNotification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.flags.notification()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
