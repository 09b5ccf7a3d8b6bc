package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/oremus-labs/docai-console/internal/logutil"
	"github.com/oremus-labs/docai-console/internal/metrics"
	"github.com/oremus-labs/docai-console/internal/openapi"
	"github.com/spf13/cobra"
)

// newClient builds an API client for the resolved context. A 401 on a call
// that carried a token drops the token from the client and from the saved
// context so the next command asks for a fresh login.
func (a *app) newClient(cmd *cobra.Command) (*apiclient.Client, *Context, error) {
	ctx, err := a.resolvedContext()
	if err != nil {
		return nil, nil, err
	}
	timeout, err := ctx.RequestTimeout()
	if err != nil {
		return nil, nil, err
	}

	var client *apiclient.Client
	onError := func(e *apiclient.Error) {
		if !apiclient.IsUnauthorized(e) {
			return
		}
		if token, ok := client.Credential(); !ok || token == "" {
			return
		}
		client.ClearCredential()
		if a.overrideToken != "" {
			return
		}
		if err := updateToken(a.cfgFile, ctx.Name, ""); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not clear saved token: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Session for context %q is no longer valid; run 'docai login'.\n", ctx.Name)
	}

	level := "disabled"
	if a.verbose {
		level = "debug"
	}
	logger := logutil.New(logutil.Options{Level: level, Format: "console", Writer: cmd.ErrOrStderr()})

	client, err = apiclient.New(apiclient.Config{
		BaseURL: ctx.Server,
		Timeout: timeout,
		Token:   ctx.Token,
		OnError: onError,
		Headers: map[string]string{"User-Agent": "docai-cli"},
	}, apiclient.WithLogger(logger), apiclient.WithObserver(metrics.ClientObserver{}))
	if err != nil {
		return nil, nil, err
	}
	return client, ctx, nil
}

// commandContext is cancelled on SIGINT/SIGTERM so long-running streams stop
// cleanly.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// schema returns a validator call option for the named OpenAPI component when
// --strict is set. Names are compile-time constants, so an unknown one panics.
func (a *app) schema(name string) []apiclient.CallOption {
	if !a.strict {
		return nil
	}
	return []apiclient.CallOption{apiclient.WithValidator(openapi.MustSchemaValidator(name))}
}
