// Package devicebus connects the puzzle engine to the installation hardware over Redis Pub/Sub.
//
// # Overview
//
// Devices (button boxes, card readers, timing pads) publish short ASCII payloads on the
// inbound topic and listen for commands on the outbound topic. The engine subscribes to the
// inbound topic, parses each payload into a DeviceEvent and routes it to the active puzzle.
// Commands flow back as strings such as "P3Start" or "P3End" and are never acknowledged.
//
// # Wire Format
//
// Inbound payloads are comma separated:
//
//	P5,3,-1.2        puzzle 5, args ["3", "-1.2"]
//	P8,2,17,4        puzzle 8, args ["2", "17", "4"]
//
// The first token is "P" followed by the decimal puzzle id and an optional kind suffix.
//
// # Usage Example
//
//	client, err := devicebus.NewClient(&redis.Options{Addr: "localhost:6379"}, "room-1", devicebus.DefaultTopics())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	sub, err := client.SubscribeDeviceEvents(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sub.Close()
//
//	for raw := range sub.Events() {
//		event, err := devicebus.ParseDeviceEvent(raw)
//		...
//	}
//
// # Delivery
//
// Redis Pub/Sub is at-most-once. Nothing on this bus is buffered for absent subscribers,
// which matches the engine rule that events for an inactive puzzle are dropped.
package devicebus
