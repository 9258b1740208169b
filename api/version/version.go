package version

// Version of agentd
var Version = "0.4.0"
