// Package dataset moves data in and out of the pipeline's store: Loader bulk
// loads source paragraphs from CSV, and Exporter flattens every fully rated
// question into a CSV row.
package dataset
