package assoc

import (
	"fmt"

	"github.com/jpfielding/dicom.go/pkg/net/pdu"
)

// observers run in registration order. A panicking observer is logged and
// the rest still run.
type observers[T any] struct {
	name string
	fns  []func(*Association, T)
}

func (o *observers[T]) add(fn func(*Association, T)) {
	o.fns = append(o.fns, fn)
}

func (o *observers[T]) fire(a *Association, v T) {
	for i, fn := range o.fns {
		a.safely(fmt.Sprintf("%s[%d]", o.name, i), func() { fn(a, v) })
	}
}

type hooks struct {
	state       observers[Transition]
	associateRQ observers[*pdu.AssociateRQ]
	associateAC observers[*pdu.AssociateAC]
	associateRJ observers[*pdu.AssociateRJ]
	pdata       observers[*pdu.PDataTF]
	releaseRQ   observers[*pdu.ReleaseRQ]
	releaseRP   observers[*pdu.ReleaseRP]
	abort       observers[*pdu.Abort]
}

func newHooks() hooks {
	return hooks{
		state:       observers[Transition]{name: "state"},
		associateRQ: observers[*pdu.AssociateRQ]{name: "associate-rq"},
		associateAC: observers[*pdu.AssociateAC]{name: "associate-ac"},
		associateRJ: observers[*pdu.AssociateRJ]{name: "associate-rj"},
		pdata:       observers[*pdu.PDataTF]{name: "p-data"},
		releaseRQ:   observers[*pdu.ReleaseRQ]{name: "release-rq"},
		releaseRP:   observers[*pdu.ReleaseRP]{name: "release-rp"},
		abort:       observers[*pdu.Abort]{name: "abort"},
	}
}

// Observers must be registered before Run. Each runs on the reading
// goroutine before the association acts on the PDU.

func (a *Association) OnStateChange(fn func(*Association, Transition)) { a.hooks.state.add(fn) }

func (a *Association) OnAssociateRQ(fn func(*Association, *pdu.AssociateRQ)) {
	a.hooks.associateRQ.add(fn)
}

func (a *Association) OnAssociateAC(fn func(*Association, *pdu.AssociateAC)) {
	a.hooks.associateAC.add(fn)
}

func (a *Association) OnAssociateRJ(fn func(*Association, *pdu.AssociateRJ)) {
	a.hooks.associateRJ.add(fn)
}

func (a *Association) OnPData(fn func(*Association, *pdu.PDataTF))       { a.hooks.pdata.add(fn) }
func (a *Association) OnReleaseRQ(fn func(*Association, *pdu.ReleaseRQ)) { a.hooks.releaseRQ.add(fn) }
func (a *Association) OnReleaseRP(fn func(*Association, *pdu.ReleaseRP)) { a.hooks.releaseRP.add(fn) }
func (a *Association) OnAbort(fn func(*Association, *pdu.Abort))         { a.hooks.abort.add(fn) }

func (a *Association) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("handler panicked", "handler", name, "panic", r)
		}
	}()
	fn()
}
