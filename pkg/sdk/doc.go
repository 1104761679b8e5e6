// Package mushi provides a Go client for the mushi mushroom classification API.
//
//	client, _ := mushi.New("http://localhost:8000", mushi.WithAPIKey(key))
//	preds, _ := client.PredictFile(ctx, "chanterelle.jpg", 3)
//	for _, p := range preds {
//	    fmt.Printf("%s %.3f\n", p.Label, p.Confidence)
//	}
//
// Predictions are returned best first, in the order the server ranked them.
package mushi
