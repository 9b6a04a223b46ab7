package version

// Current is the released version of mailfinder.
const Current = "0.1.0"
