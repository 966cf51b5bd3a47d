package ir

// BusdriverVersion is the protocol handler version advertised to feeds.
const BusdriverVersion = "0.1.1"
