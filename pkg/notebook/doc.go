// Package notebook hosts the cell list and the per-pass render walk.
//
// A Notebook owns the session's slot store and an ordered list of
// cells. The hosting render loop calls RenderPass once per frame, on a
// single goroutine: stateless cells just render, stateful cells mutate
// their value synchronously under an exclusive lease, and reactive
// cells advance their state machine (spawn, poll, apply) before
// rendering their latest ready value. A pass never blocks on a worker.
//
// When a pass changes any cell's visible value, the notebook invokes
// the host-supplied repaint callback once so the UI updates promptly
// even without new input.
//
// Example:
//
//	nb := notebook.New(notebook.WithRepaint(win.RequestRepaint))
//
//	a := notebook.Stateful(nb, "a", func() int { return 5 }, renderSlider)
//	notebook.Reactive(nb, "b",
//	    func(vals reactive.Values) (int, error) {
//	        return reactive.At[int](vals, 0) * 2, nil
//	    },
//	    renderNumber,
//	    reactive.Watch(a),
//	)
//
//	for running {
//	    nb.RenderPass()
//	}
package notebook
