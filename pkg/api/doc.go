// Package api talks to the Summer of Making JSON endpoints.
//
// A Client performs exactly one HTTP attempt per call. It sends the fixed
// identifying headers, renders the job's cookie jar into the Cookie header,
// absorbs Set-Cookie from every response (including failures) and turns the
// outcome into either a body or a typed *errors.Error that the retry layer
// understands.
//
//	client := api.NewClient(api.Options{UserAgent: "SoMUsersScraper/1.0 (Pls dont ban)"})
//	page, err := client.GetPage(ctx, "https://summer.hackclub.com/api/v1/users?page=1", jar, []string{"users"})
package api
