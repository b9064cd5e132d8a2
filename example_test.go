package itemapprove_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

func ExampleOrchestrator_Get() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":200,"msg":"ok","success":true,"data":{"keyword":%q}}`, r.URL.Query().Get("keyword"))
	}))
	defer server.Close()

	o := itemapprove.New(
		itemapprove.WithBaseURL(server.URL),
		itemapprove.WithDebounce(0),
		itemapprove.WithEvictInterval(0),
	)
	defer o.Close()

	resp, err := o.Get(context.Background(), "/monitor-items", itemapprove.Params{"keyword": "disk"})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(resp.Data))
	// Output: {"keyword":"disk"}
}

func ExampleIsCancelled() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer server.Close()

	o := itemapprove.New(
		itemapprove.WithBaseURL(server.URL),
		itemapprove.WithEvictInterval(0),
		itemapprove.WithNotifier(itemapprove.NotifierFunc(func(context.Context, itemapprove.Notification) {})),
	)
	o.Close()

	_, err := o.Get(context.Background(), "/todos", nil)
	fmt.Println(itemapprove.IsCancelled(err))
	// Output: true
}
