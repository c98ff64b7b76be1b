// Package httpmod provides the httpc command, a small HTTP client that
// moves request and response bodies to and from files.
//
//	httpc version          ;# client library version, "major minor patch"
//	httpc get URL file     ;# stores the body, returns the byte count
//	httpc put URL file     ;# sends file as the body
//	httpc delete URL
//	httpc head URL
//
// Requests are made once; a failed request is reported, never retried.
// Responses with a status of 400 or above are failures.
package httpmod
