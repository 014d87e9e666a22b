package logging

// Component-specific loggers for easy incremental adoption

// Config logger for configuration operations
var Config = NewLogger("config")
