// Package extract turns decoded RealSense messages into container
// configurations and data payloads.
//
// A conversion first feeds every message of the configuration topics to a
// Sources snapshot, then asks it for one configuration per mapped stream.
// Data messages go through Payload one at a time.
package extract
