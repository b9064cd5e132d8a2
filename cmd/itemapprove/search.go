package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

var (
	searchRepeat   int
	searchInterval time.Duration
	searchStatus   []string
)

var searchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Search monitoring items the way the console's search box does",
	Long: `Fire the same monitoring-item search several times in quick succession,
as a user hammering the search button would. Calls that arrive within the
debounce window supersede each other, so only the last one reaches the
backend; the others report as cancelled.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchRepeat, "repeat", 5, "Number of identical searches to fire")
	searchCmd.Flags().DurationVar(&searchInterval, "interval", 50*time.Millisecond, "Delay between searches")
	searchCmd.Flags().StringSliceVar(&searchStatus, "status", nil, "Filter by item status (repeatable)")
}

type searchPage struct {
	Items []struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"items"`
	Total int `json:"total"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	params := itemapprove.Params{"keyword": args[0]}
	if len(searchStatus) > 0 {
		params["status"] = searchStatus
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= searchRepeat; i++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			page, err := search(cmd.Context(), c.Orchestrator, params)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case itemapprove.IsCancelled(err):
				fmt.Fprintf(out, "search #%d: superseded\n", attempt)
			case err != nil:
				fmt.Fprintf(out, "search #%d: %v\n", attempt, err)
			default:
				fmt.Fprintf(out, "search #%d: %d of %d items\n", attempt, len(page.Items), page.Total)
				for _, item := range page.Items {
					fmt.Fprintf(out, "  %4d  %-10s %s\n", item.ID, item.Status, item.Name)
				}
			}
		}(i)
		if i < searchRepeat {
			time.Sleep(searchInterval)
		}
	}
	wg.Wait()
	return nil
}

func search(ctx context.Context, o *itemapprove.Orchestrator, params itemapprove.Params) (searchPage, error) {
	resp, err := o.Get(ctx, "/monitor-items", params)
	if err != nil {
		return searchPage{}, err
	}
	return itemapprove.Decode[searchPage](resp)
}
