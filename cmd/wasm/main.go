//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/diagram/internal/engine"
)

var eng *engine.Engine

// notification is how engine notifications cross into JavaScript.
type notification struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

type applyResult struct {
	Changed       bool           `json:"changed"`
	CanUndo       bool           `json:"canUndo"`
	CanRedo       bool           `json:"canRedo"`
	Notifications []notification `json:"notifications"`
}

func main() {
	eng = engine.NewEngine(engine.Options{})

	diagramEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	diagramEngine.Set("loadDocument", js.FuncOf(loadDocument))
	diagramEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	diagramEngine.Set("apply", js.FuncOf(apply))

	// --- Queries (frontend ← engine) ---
	diagramEngine.Set("render", js.FuncOf(render))
	diagramEngine.Set("hitTest", js.FuncOf(hitTest))
	diagramEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	diagramEngine.Set("getScene", js.FuncOf(getScene))
	diagramEngine.Set("getDocument", js.FuncOf(getDocument))
	diagramEngine.Set("copySelection", js.FuncOf(copySelection))

	js.Global().Set("diagramEngine", diagramEngine)
	js.Global().Set("diagramWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorValue(msg string) js.Value {
	return js.ValueOf(map[string]any{"error": msg})
}

func jsonValue(v any) js.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return errorValue("missing diagram id or JSON")
	}
	if err := eng.Load(args[0].String(), []byte(args[1].String())); err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(map[string]any{"ok": true})
}

func loadSampleDocument(this js.Value, args []js.Value) any {
	diagramID := "diag_sample"
	if len(args) > 0 && args[0].Type() == js.TypeString {
		diagramID = args[0].String()
	}
	eng.LoadSample(diagramID)
	return js.ValueOf(map[string]any{"ok": true})
}

// apply(kind, payloadJSON) runs one intent and returns the outcome as JSON.
func apply(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorValue("missing command kind")
	}
	var payload json.RawMessage
	if len(args) > 1 && args[1].Type() == js.TypeString {
		payload = json.RawMessage(args[1].String())
	}
	cmd, err := engine.DecodeCommand(args[0].String(), payload)
	if err != nil {
		return errorValue(err.Error())
	}

	before := eng.Scene()
	res := eng.Apply(cmd)

	out := applyResult{
		Changed:       res.Scene != before,
		CanUndo:       eng.CanUndo(),
		CanRedo:       eng.CanRedo(),
		Notifications: make([]notification, 0, len(res.Notifications)),
	}
	for _, n := range res.Notifications {
		out.Notifications = append(out.Notifications, notification{Kind: n.Kind(), Payload: n})
	}
	return jsonValue(out)
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) any {
	return jsonValue(eng.DrawCommands())
}

func hitTest(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func getSelectionBounds(this js.Value, args []js.Value) any {
	box, ok := eng.SelectionBounds()
	if !ok {
		return js.Null()
	}
	return jsonValue(box)
}

func getScene(this js.Value, args []js.Value) any {
	data, err := eng.View()
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}

func getDocument(this js.Value, args []js.Value) any {
	data, err := eng.Data()
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}

func copySelection(this js.Value, args []js.Value) any {
	data, err := eng.Copy()
	if err != nil {
		return errorValue(err.Error())
	}
	return js.ValueOf(string(data))
}
