package task

// Entry is a queued task with its stored encoding. Raw identifies the list element
// when the task is removed, so entries that failed to decode can still be dropped.
type Entry struct {
	Task
	Raw []byte
}
