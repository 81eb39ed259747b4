// Package affilink embeds the affiliate auto-linking engine in a Go program.
//
// Documents are saved into the engine's content store. Publishing a document queues
// it for auto-linking; draining the queue extracts keywords, searches every
// configured catalog source, and places the best matching products between the
// document's paragraphs. Render returns the body with product cards injected.
//
//	client, _ := affilink.New(
//	    affilink.WithMemory(),
//	    affilink.WithFeed("awin", "https://feed.example", token),
//	)
//	defer client.Close()
//
//	_, _ = client.SaveDocument(ctx, affilink.Document{ID: "42", Title: title, Body: body})
//	_, _ = client.Publish(ctx, "42")
//	_, _ = client.Drain(ctx)
//	html, _ := client.Render(ctx, "42")
package affilink
