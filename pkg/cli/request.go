package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/stockyard/pkg/gateway"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		params  []string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "get <endpoint> [endpoint...]",
		Short: "GET one or more endpoints and print the JSON responses",
		Long: `GET one or more endpoints through the gateway. Relative endpoints are
resolved against the API base URL. Several endpoints are fetched concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parsePairs(params)
			if err != nil {
				return err
			}
			opts := &gateway.Options{Params: query}
			if noCache {
				opts = gateway.NoCache()
				opts.Params = query
			}

			return a.withClient(cmd, func(ctx context.Context, c *gateway.Client) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					raw, err := c.Get(ctx, args[0], opts)
					if err != nil {
						return err
					}
					return printJSON(out, raw)
				}
				return getMany(ctx, out, c, args, opts)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	return cmd
}

// getMany fetches endpoints as one batch and prints each result under a
// heading. Every failure is reported; the batch itself always completes.
func getMany(ctx context.Context, out io.Writer, c *gateway.Client, endpoints []string, opts *gateway.Options) error {
	reqs := make([]gateway.BatchRequest, len(endpoints))
	for i, ep := range endpoints {
		reqs[i] = gateway.BatchRequest{Method: http.MethodGet, Endpoint: ep, Options: opts}
	}

	var errs []error
	for i, res := range c.Batch(ctx, reqs) {
		fmt.Fprintf(out, "== %s ==\n", endpoints[i])
		if !res.OK() {
			fmt.Fprintf(out, "error: %v\n", res.Err)
			errs = append(errs, fmt.Errorf("%s: %w", endpoints[i], res.Err))
			continue
		}
		if err := printJSON(out, res.Data); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func newPostCmd(a *app) *cobra.Command {
	var (
		data   string
		fields []string
		files  []string
	)

	cmd := &cobra.Command{
		Use:   "post <endpoint>",
		Short: "POST a JSON or multipart body and print the JSON response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postBody(data, fields, files)
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *gateway.Client) error {
				raw, err := c.Post(ctx, args[0], body, nil)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), raw); err != nil {
					return err
				}
				// Bodies that are not an envelope are fine; a "no" status is not
				if _, err := gateway.DecodeEnvelope[json.RawMessage](raw); gateway.IsKind(err, gateway.KindApplication) {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&fields, "form", "F", nil, "multipart field as key=value (repeatable)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "multipart file as field=path (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("data", "form")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	return cmd
}

// postBody returns a JSON body, a multipart form, or nil for an empty POST
func postBody(data string, fields, files []string) (any, error) {
	if data != "" {
		if !json.Valid([]byte(data)) {
			return nil, fmt.Errorf("--data is not valid JSON")
		}
		return json.RawMessage(data), nil
	}
	if len(fields) == 0 && len(files) == 0 {
		return nil, nil
	}

	form := gateway.NewFormData()
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", f)
		}
		form.Append(key, value)
	}
	for _, f := range files {
		field, path, ok := strings.Cut(f, "=")
		if !ok || field == "" || path == "" {
			return nil, fmt.Errorf("invalid file %q, expected field=path", f)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		form.AppendFile(field, filepath.Base(path), bytes.NewReader(content))
	}
	return form, nil
}

// parsePairs turns key=value flags into query values. Repeated keys are kept.
func parsePairs(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}

func printJSON(out io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		// Not JSON; print as received
		_, err = fmt.Fprintln(out, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(out)
	return err
}
