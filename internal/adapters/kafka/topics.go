package kafka

// Topics used by the platform
const (
	// TopicInboundMessages carries platform webhook messages awaiting an agent reply
	TopicInboundMessages = "messages.inbound"

	// TopicInteractions carries every completed agent interaction
	TopicInteractions = "agents.interactions"

	// TopicMetricsSnapshots carries periodic collector exports
	TopicMetricsSnapshots = "metrics.snapshots"
)
