// Package interaction implements the attribute services of a server.
//
// The interaction model defines three operations over a value store:
//
//   - Read: Get current attribute values
//   - Write: Replace attribute values
//   - Subscribe: Register for change notifications
//
// # Server Usage
//
// The Server answers requests from a Store:
//
//	store := interaction.NewStore(nil)
//	store.AddNode("ns=2;s=Power", map[attribute.ID]*datavalue.DataValue{
//	    attribute.Value:       datavalue.New(variant.Double(11.2)),
//	    attribute.DisplayName: datavalue.New(variant.String("Power")),
//	})
//	server := interaction.NewServer(store, interaction.DefaultConfig())
//
//	// Handle incoming request
//	response, err := server.HandleRequest(ctx, request)
//
// Every Read result is the stored value reduced to the requested index
// range, then given the requested timestamps. Only the Value attribute
// carries a source timestamp.
//
// # Client Usage
//
// The Client matches responses to requests by request handle:
//
//	client := interaction.NewClient(conn)
//
//	values, err := client.Read(ctx, datavalue.TimestampsBoth,
//	    interaction.ReadValueID{NodeID: "ns=2;s=Power", AttributeID: attribute.Value})
//
// # Subscription Management
//
// Writes to the store are dispatched to the subscription manager. Server.Run
// drives coalescing and heartbeats until its context is cancelled.
package interaction
