package realtime

var PubSubMessage = pubSubMessage
