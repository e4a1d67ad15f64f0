// Package catalog defines the domain types shared by the ingestion pipeline:
// catalog records, candidates discovered on the ranking page, fetched
// documents, the controlled vocabularies and the error taxonomy.
package catalog
