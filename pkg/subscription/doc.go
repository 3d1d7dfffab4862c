// Package subscription implements monitored-item subscriptions over
// attribute values.
//
// A subscription watches a set of monitored items, each one attribute of one
// node. Producers report every new sample with Manager.NotifyChange; the
// subscription decides with a datavalue.ChangeDetector whether the sample is
// a reportable change and delivers the result through the notification
// callback.
//
// # Subscription Parameters
//
// Each subscription has:
//   - minInterval: Minimum time between notifications (coalescing window)
//   - maxInterval: Maximum time without notification (heartbeat)
//   - timestampsToReturn: Timestamps included in reported values
//   - items: Monitored items with an optional index range and a trigger
//
// # Data Change Triggers
//
// The trigger of an item selects what counts as a change:
//
//	Status                 only the status code
//	StatusValue            status or payload (default)
//	StatusValueTimestamp   status, payload or source timestamp
//
// Two samples carrying the same non-null source timestamp are treated as the
// same observation unless the manager is configured with VerifyPayload.
//
// # Coalescing Behavior
//
// When multiple changes occur within minInterval, only the final value is
// sent. The coalescing window starts when the first change occurs after the
// previous notification.
//
// # Bounce-Back Suppression
//
// If a value changes and then returns to the last notified value within the
// coalescing window, no notification is sent. "Returns" uses the same
// trigger rule as change detection.
//
// # Reported Values
//
// Values are reported after applying the item's index range and the
// subscription's timestampsToReturn, so they are ready to encode.
//
// # Priming and Heartbeat
//
// When a subscription is established, a priming notification is sent
// immediately with all current values. Heartbeat notifications are sent
// at maxInterval if no changes occur, confirming the subscription is alive.
package subscription
