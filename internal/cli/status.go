package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/tally/internal/keyring"
)

// StatusCmd reports where the client stands: keyring, credential and
// whether the dashboard answers.
type StatusCmd struct{}

func (cmd *StatusCmd) Run(ctx *Context) error {
	ctx.printf("Server: %s\n\n", ctx.Config.BaseURL)

	hasError := false

	if keyring.IsAvailable() {
		ctx.printf("✓ Keyring available: OK\n")
	} else {
		ctx.printf("⚠ Keyring available: WARNING\n")
		ctx.printf("   sign-ins will not survive a restart\n")
	}

	info := ctx.Session.Describe()
	if !info.Present {
		ctx.printf("⊘ Signed in: NO\n")
		ctx.printf("⊘ Dashboard reachable: SKIPPED (not signed in)\n")
		return nil
	}
	ctx.printf("✓ Signed in: YES\n")
	for _, line := range describeToken(info.Subject, info.Opaque, info.IssuedAt, info.ExpiresAt) {
		ctx.printf("   %s\n", line)
	}

	if err := ctx.Engine.RefreshAll(context.Background()); err != nil {
		ctx.printf("❌ Dashboard reachable: FAIL\n")
		ctx.printf("   Error: %v\n", err)
		hasError = true
	} else {
		ctx.printf("✓ Dashboard reachable: OK\n")
	}

	if hasError {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func describeToken(subject string, opaque bool, issued, expires time.Time) []string {
	if opaque {
		return []string{"token: opaque"}
	}
	var lines []string
	if subject != "" {
		lines = append(lines, "user: "+subject)
	}
	if !issued.IsZero() {
		lines = append(lines, "issued: "+issued.Local().Format(time.RFC1123))
	}
	if !expires.IsZero() {
		line := "expires: " + expires.Local().Format(time.RFC1123)
		if time.Now().After(expires) {
			line += " (expired, the server will ask you to sign in again)"
		}
		lines = append(lines, line)
	}
	return lines
}
