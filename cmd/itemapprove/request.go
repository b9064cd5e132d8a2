package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
	"github.com/Yuexixi123/ItemApprove-sub001/internal/backoff"
)

var (
	requestParams    []string
	requestData      string
	requestImmediate bool
	requestQuiet     bool
	requestRetries   int
	requestStrategy  string
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send one request through the orchestrator",
	Long: `Send one request and print the data field of the response envelope.

Query parameters use bracket notation for repeated values:

  itemapprove request GET /monitor-items -p keyword=disk -p status[]=pending

The body given with --data is sent verbatim as JSON. With --retries the
command retries network failures with exponential backoff, or decorrelated
jitter with --retry-strategy=decorrelated; HTTP status and business failures
are never retried.`,
	Args: cobra.ExactArgs(2),
	RunE: runRequest,
}

func init() {
	requestCmd.Flags().StringArrayVarP(&requestParams, "param", "p", nil, "Query parameter key=value (repeatable, key[]=value for lists)")
	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "JSON request body")
	requestCmd.Flags().BoolVar(&requestImmediate, "immediate", true, "Skip the debounce delay")
	requestCmd.Flags().BoolVarP(&requestQuiet, "quiet", "q", false, "Suppress failure notifications")
	requestCmd.Flags().IntVar(&requestRetries, "retries", 0, "Retry network failures this many times")
	requestCmd.Flags().StringVar(&requestStrategy, "retry-strategy", "exponential", "Retry delay strategy: exponential or decorrelated")
}

func runRequest(cmd *cobra.Command, args []string) error {
	params, err := parseParams(requestParams)
	if err != nil {
		return err
	}

	var body any
	if requestData != "" {
		if !json.Valid([]byte(requestData)) {
			return fmt.Errorf("--data is not valid JSON")
		}
		body = json.RawMessage(requestData)
	}

	strategy, err := retryStrategy(requestStrategy)
	if err != nil {
		return err
	}

	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := cmd.Context()
	if requestImmediate {
		ctx = itemapprove.WithContextImmediate(ctx)
	}
	if requestQuiet {
		ctx = itemapprove.WithContextSkipErrorHandler(ctx)
	}

	policy := backoff.DefaultPolicy()
	policy.Attempts = requestRetries
	policy.Strategy = strategy

	var resp *itemapprove.Response
	err = backoff.Retry(ctx, policy, itemapprove.IsNetwork, func(ctx context.Context) error {
		var sendErr error
		resp, sendErr = c.Send(ctx, strings.ToUpper(args[0]), args[1], params, body)
		return sendErr
	})
	if err != nil {
		if reqErr, ok := itemapprove.AsRequestError(err); ok && c.cfg.Logger.Level == "debug" {
			fmt.Fprint(cmd.ErrOrStderr(), reqErr.DebugInfo())
		}
		return err
	}

	return printData(cmd, resp)
}

func retryStrategy(name string) (backoff.Strategy, error) {
	switch strings.ToLower(name) {
	case "", "exponential":
		return backoff.Exponential{Multiplier: 2, Jitter: 0.1}, nil
	case "decorrelated":
		return backoff.Decorrelated{}, nil
	}
	return nil, fmt.Errorf("unknown retry strategy %q, expected exponential or decorrelated", name)
}

func printData(cmd *cobra.Command, resp *itemapprove.Response) error {
	out := cmd.OutOrStdout()
	data := []byte(resp.Data)
	if len(data) == 0 {
		data = resp.Raw
	}
	if len(data) == 0 {
		fmt.Fprintln(out, http.StatusText(resp.StatusCode))
		return nil
	}

	var pretty any
	if err := json.Unmarshal(data, &pretty); err != nil {
		fmt.Fprintln(out, string(data))
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

// parseParams turns key=value pairs into Params. Keys ending in [] collect
// into a list.
func parseParams(pairs []string) (itemapprove.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := itemapprove.Params{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		if list, ok := strings.CutSuffix(key, "[]"); ok {
			values, _ := params[list].([]string)
			params[list] = append(values, value)
			continue
		}
		params[key] = value
	}
	return params, nil
}
