package connection

import "time"

// Observer receives Supervisor lifecycle notifications. Methods are called
// from the Supervisor's goroutines and must not block.
type Observer interface {
	OnConnected()
	OnDisconnected(err error)
	OnMessage()
	OnProbe(observed bool)
	OnBackoff(d time.Duration)
	OnLoopState(change LoopStateChange)
}

// NopObserver implements Observer with no-ops. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnConnected() {}
func (NopObserver) OnDisconnected(error) {}
func (NopObserver) OnMessage() {}
func (NopObserver) OnProbe(bool) {}
func (NopObserver) OnBackoff(time.Duration) {}
func (NopObserver) OnLoopState(LoopStateChange) {}

// Observers fans notifications out to each element in order.
type Observers []Observer

func (o Observers) OnConnected() {
	for _, obs := range o {
		obs.OnConnected()
	}
}

func (o Observers) OnDisconnected(err error) {
	for _, obs := range o {
		obs.OnDisconnected(err)
	}
}

func (o Observers) OnMessage() {
	for _, obs := range o {
		obs.OnMessage()
	}
}

func (o Observers) OnProbe(observed bool) {
	for _, obs := range o {
		obs.OnProbe(observed)
	}
}

func (o Observers) OnBackoff(d time.Duration) {
	for _, obs := range o {
		obs.OnBackoff(d)
	}
}

func (o Observers) OnLoopState(change LoopStateChange) {
	for _, obs := range o {
		obs.OnLoopState(change)
	}
}
