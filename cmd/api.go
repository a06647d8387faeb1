package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotsync/internal/shared"
)

// APICall sends an authenticated request using the subcommand name as the
// HTTP method and prints the response.
func (r *Runner) APICall(ctx context.Context, cmd *cli.Command) error {
	endpoint := cmd.StringArg("endpoint")
	if endpoint == "" {
		return fmt.Errorf("%w: endpoint", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	method := strings.ToUpper(cmd.Name)
	var body []byte
	if data := cmd.String("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
		}
		body = []byte(data)
	} else if method == http.MethodPost || method == http.MethodPut {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	if err := r.authenticate(ctx); err != nil {
		return err
	}

	r.logger.Info("API request", "method", method, "endpoint", endpoint)

	resp, err := r.client.Raw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, true)
	}
	if len(resp.Body) == 0 {
		return r.writePlain("%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return r.writePlain("%s\n", resp.Body)
}
