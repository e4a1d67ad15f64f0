// Package crawl turns the ranking page into catalog records. It fetches the
// ranking once, then visits each candidate's detail page strictly in order
// with a fixed pause between fetches. A candidate that cannot be fetched or
// parsed is logged and skipped; the run returns whatever succeeded.
package crawl
