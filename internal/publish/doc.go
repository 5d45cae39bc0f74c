// Package publish forwards realtime events to Redis pub/sub so other
// processes can consume them without holding their own websocket.
package publish
