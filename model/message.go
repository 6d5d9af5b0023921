package model

// RawMessage is one message as handed over by a source (IMAP fetch or mbox
// file). UID is the source-assigned identifier the resume cursor is keyed on;
// mbox sources assign ascending sequence numbers.
type RawMessage struct {
	UID  uint32
	Size int64
	Raw  []byte
}

// Envelope wraps a message alongside an optional error encountered while
// fetching or decoding it.
type Envelope struct {
	Message RawMessage
	Err     error
}
