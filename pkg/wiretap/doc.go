// Package wiretap records the HTTP traffic a process originates.
//
// A Recorder owns a bounded, persisted request log and the interceptor
// feeding it. It has an explicit lifecycle:
//
//	rec, err := wiretap.New(config.Default())
//	if err != nil {
//	    return err
//	}
//	defer rec.Close()
//
//	rec.Enable()                       // capture http.DefaultTransport traffic
//	client := rec.ConfigureClient(nil) // or wire a specific client
//
//	for _, r := range rec.Filter("api.example.com") {
//	    fmt.Println(r.Method, r.URL, r.FormattedDuration())
//	}
//
// Recording never changes the outcome of a request: the caller always gets
// the response or error the underlying transport produced.
package wiretap
