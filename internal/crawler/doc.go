// Package crawler drives a site crawl over an http.RoundTripper using a colly
// collector, scraping links from configured media types and streaming every
// successful response into a Destination.
package crawler
