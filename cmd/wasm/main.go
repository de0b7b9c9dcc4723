//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/quadracalc/internal/midiclock"
	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/internal/tempo"
	"github.com/himanishpuri/quadracalc/pkg/logger"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
	"github.com/himanishpuri/quadracalc/pkg/utils"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidInput
	ErrorInsufficientData
	ErrorStorage
	ErrorUnsupported
	ErrorNotFound
	ErrorAlreadyExists
	ErrorInternal
)

var svc *quadracalc.Service

func errorCode(err error) int {
	switch quadracalc.Kind(err) {
	case quadracalc.KindInvalidInput:
		return ErrorInvalidInput
	case quadracalc.KindInsufficientData:
		return ErrorInsufficientData
	case quadracalc.KindStorageFailure:
		return ErrorStorage
	case quadracalc.KindCapabilityAbsent:
		return ErrorUnsupported
	case quadracalc.KindNotFound:
		return ErrorNotFound
	case quadracalc.KindAlreadyExists:
		return ErrorAlreadyExists
	default:
		return ErrorInternal
	}
}

// toJS converts a Go value to a plain JS object through its JSON form.
func toJS(v any) js.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return js.Global().Get("JSON").Call("parse", string(data))
}

// respond builds the {error, data} object every exported function returns.
// A tempo that was applied but not saved succeeds with a warning field.
func respond(v any, err error) js.Value {
	result := js.Global().Get("Object").New()
	if quadracalc.IsTempoNotSaved(err) {
		result.Set("warning", quadracalc.UserMessage(err))
		err = nil
	}
	if err != nil {
		result.Set("error", errorCode(err))
		result.Set("data", quadracalc.UserMessage(err))
		return result
	}
	result.Set("error", ErrorNone)
	result.Set("data", toJS(v))
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

// promise runs fn off the event loop and resolves with its response.
func promise(fn func() (any, error)) js.Value {
	var handler js.Func
	handler = js.FuncOf(func(this js.Value, args []js.Value) any {
		resolve := args[0]
		go func() {
			defer handler.Release()
			v, err := fn()
			resolve.Invoke(respond(v, err))
		}()
		return nil
	})
	return js.Global().Get("Promise").New(handler)
}

// await blocks the calling goroutine until p settles.
func await(p js.Value) (js.Value, error) {
	type outcome struct {
		v   js.Value
		err error
	}
	done := make(chan outcome, 1)
	onOK := js.FuncOf(func(this js.Value, args []js.Value) any {
		v := js.Undefined()
		if len(args) > 0 {
			v = args[0]
		}
		done <- outcome{v: v}
		return nil
	})
	onErr := js.FuncOf(func(this js.Value, args []js.Value) any {
		msg := "promise rejected"
		if len(args) > 0 {
			msg = args[0].Call("toString").String()
		}
		done <- outcome{err: errors.New(msg)}
		return nil
	})
	defer onOK.Release()
	defer onErr.Release()

	p.Call("then", onOK, onErr)
	o := <-done
	return o.v, o.err
}

func argNumber(args []js.Value, i int, name string) (float64, error) {
	if len(args) <= i || args[i].Type() != js.TypeNumber {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return args[i].Float(), nil
}

// argInt reads a whole number; fractions, NaN and infinities are rejected.
func argInt(args []js.Value, i int, name string) (int, error) {
	v, err := argNumber(args, i, name)
	if err != nil {
		return 0, err
	}
	n, ok := utils.WholeNumber(v)
	if !ok {
		return 0, fmt.Errorf("%s must be a whole number", name)
	}
	return n, nil
}

func argString(args []js.Value, i int, name string) (string, error) {
	if len(args) <= i || args[i].Type() != js.TypeString {
		return "", fmt.Errorf("%s must be a string", name)
	}
	return args[i].String(), nil
}

func argNumbers(args []js.Value, i int, name string) ([]float64, error) {
	if len(args) <= i || args[i].Type() != js.TypeObject {
		return nil, fmt.Errorf("%s must be an Array or Float64Array", name)
	}
	arr := args[i]
	out := make([]float64, arr.Length())
	for j := range out {
		val := arr.Index(j)
		if val.Type() != js.TypeNumber {
			return nil, fmt.Errorf("%s element %d is not a number", name, j)
		}
		out[j] = val.Float()
	}
	return out, nil
}

type delaysView struct {
	BPM       int                       `json:"bpm"`
	Unit      string                    `json:"unit"`
	Groups    []subdivision.Group       `json:"groups"`
	Quick     []subdivision.QuickResult `json:"quick"`
	Formatted map[string]string         `json:"formatted"`
}

// calculate(bpm?) returns every delay at bpm, or at the current tempo.
func calculate(this js.Value, args []js.Value) any {
	bpm := svc.CurrentBPM()
	if len(args) > 0 && !args[0].IsUndefined() {
		v, err := argInt(args, 0, "bpm")
		if err != nil {
			return makeErrorResponse(ErrorInvalidInput, err.Error())
		}
		bpm = v
	}

	groups, err := svc.DelaysFor(bpm)
	if err != nil {
		return respond(nil, err)
	}
	quick, _ := subdivision.Quick(bpm)

	f := svc.Formatter()
	formatted := make(map[string]string)
	for _, g := range groups {
		for _, d := range g.Delays {
			formatted[d.Name] = f.Format(d.Ms)
		}
	}
	return respond(delaysView{BPM: bpm, Unit: string(f.Unit), Groups: groups, Quick: quick, Formatted: formatted}, nil)
}

func format(this js.Value, args []js.Value) any {
	ms, err := argNumber(args, 0, "ms")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(map[string]string{"display": svc.Format(ms), "raw": svc.RawValue(ms)}, nil)
}

func parseRaw(this js.Value, args []js.Value) any {
	raw, err := argString(args, 0, "value")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(svc.ParseRaw(raw))
}

func bpmResponse(bpm int, err error) js.Value {
	return respond(map[string]int{"bpm": bpm}, err)
}

func getBPM(this js.Value, args []js.Value) any {
	return bpmResponse(svc.CurrentBPM(), nil)
}

func setBPM(this js.Value, args []js.Value) any {
	v, err := argInt(args, 0, "bpm")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	err = svc.SetBPM(v)
	return bpmResponse(svc.CurrentBPM(), err)
}

func nudge(this js.Value, args []js.Value) any {
	v, err := argInt(args, 0, "delta")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return bpmResponse(svc.NudgeBPM(v))
}

func halve(this js.Value, args []js.Value) any {
	return bpmResponse(svc.HalveBPM())
}

func double(this js.Value, args []js.Value) any {
	return bpmResponse(svc.DoubleBPM())
}

// tap(timestamp?) records a tap. Pass event.timeStamp for the most accurate
// intervals; without it the current time is used.
func tap(this js.Value, args []js.Value) any {
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		return respond(svc.Tap(args[0].Float()))
	}
	return respond(svc.TapNow())
}

func finalize(this js.Value, args []js.Value) any {
	return respond(svc.FinalizeTap())
}

func reset(this js.Value, args []js.Value) any {
	svc.ResetTap()
	return respond(map[string]int{"taps": 0}, nil)
}

func estimateTaps(this js.Value, args []js.Value) any {
	ts, err := argNumbers(args, 0, "timestamps")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(quadracalc.EstimateTaps(ts, tempo.DefaultMaxTaps))
}

func estimateClock(this js.Value, args []js.Value) any {
	pulses, err := argNumbers(args, 0, "pulses")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(quadracalc.EstimateClock(pulses))
}

func presets(this js.Value, args []js.Value) any {
	return respond(svc.Presets(), nil)
}

func savePreset(this js.Value, args []js.Value) any {
	name, err := argString(args, 0, "name")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(svc.SavePreset(name))
}

func loadPreset(this js.Value, args []js.Value) any {
	ref, err := argString(args, 0, "id")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(svc.LoadPreset(ref))
}

func deletePreset(this js.Value, args []js.Value) any {
	ref, err := argString(args, 0, "id")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	if err := svc.DeletePreset(ref); err != nil {
		return respond(nil, err)
	}
	return respond(svc.Presets(), nil)
}

func subdivisions(this js.Value, args []js.Value) any {
	return respond(svc.Subdivisions(), nil)
}

func addSubdivision(this js.Value, args []js.Value) any {
	name, err := argString(args, 0, "name")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	factor, err := argNumber(args, 1, "factor")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	return respond(svc.AddSubdivision(name, factor))
}

func removeSubdivision(this js.Value, args []js.Value) any {
	name, err := argString(args, 0, "name")
	if err != nil {
		return makeErrorResponse(ErrorInvalidInput, err.Error())
	}
	if err := svc.RemoveSubdivision(name); err != nil {
		return respond(nil, err)
	}
	return respond(svc.Subdivisions(), nil)
}

// settings(update?) returns the settings, applying update first if given.
func settings(this js.Value, args []js.Value) any {
	if len(args) == 0 || args[0].IsUndefined() || args[0].IsNull() {
		return respond(svc.Settings(), nil)
	}
	var u quadracalc.SettingsUpdate
	raw := js.Global().Get("JSON").Call("stringify", args[0]).String()
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return makeErrorResponse(ErrorInvalidInput, fmt.Sprintf("invalid settings: %v", err))
	}
	return respond(svc.UpdateSettings(u))
}

func history(this js.Value, args []js.Value) any {
	return respond(svc.History(), nil)
}

func exportJSON(this js.Value, args []js.Value) any {
	data, err := svc.ExportJSON()
	if err != nil {
		return respond(nil, err)
	}
	return respond(map[string]string{"filename": svc.ExportFilename(), "json": string(data)}, nil)
}

func shareText(this js.Value, args []js.Value) any {
	return respond(map[string]string{"text": svc.ShareText()}, nil)
}

// copyText(text?) copies text, or every delay when text is omitted. It
// returns a Promise.
func copyText(this js.Value, args []js.Value) any {
	var text string
	if len(args) > 0 && args[0].Type() == js.TypeString {
		text = args[0].String()
	}
	return promise(func() (any, error) {
		if text == "" {
			var err error
			if text, err = svc.CopyAllText(); err != nil {
				return nil, err
			}
		}
		if err := writeClipboard(text); err != nil {
			return nil, err
		}
		return map[string]int{"length": len(text)}, nil
	})
}

func writeClipboard(text string) error {
	clipboard := js.Global().Get("navigator").Get("clipboard")
	if !clipboard.IsUndefined() && !clipboard.IsNull() {
		_, err := await(clipboard.Call("writeText", text))
		if err == nil {
			return nil
		}
		logger.Debugf("clipboard.writeText failed, falling back: %v", err)
	}
	return execCommandCopy(text)
}

// execCommandCopy is the fallback for browsers without the async clipboard.
func execCommandCopy(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("copy failed: %v", r)
		}
	}()

	doc := js.Global().Get("document")
	ta := doc.Call("createElement", "textarea")
	ta.Set("value", text)
	ta.Get("style").Set("position", "fixed")
	ta.Get("style").Set("opacity", "0")
	doc.Get("body").Call("appendChild", ta)
	ta.Call("select")
	ok := doc.Call("execCommand", "copy").Bool()
	doc.Get("body").Call("removeChild", ta)
	if !ok {
		return errors.New("copy command was rejected")
	}
	return nil
}

// syncMidi listens for MIDI clock on the first (or named) input and resolves
// with the synced tempo. It returns a Promise.
func syncMidi(this js.Value, args []js.Value) any {
	var opts []midiclock.Option
	if len(args) > 0 && args[0].Type() == js.TypeString {
		opts = append(opts, midiclock.WithPort(args[0].String()))
	}
	onProgress := js.Undefined()
	if len(args) > 1 && args[1].Type() == js.TypeFunction {
		onProgress = args[1]
	}

	return promise(func() (any, error) {
		src := midiclock.NewSource(opts...)
		return svc.SyncClock(context.Background(), src, func(preview, pulses int) {
			if !onProgress.IsUndefined() {
				onProgress.Invoke(preview, pulses)
			}
		})
	})
}

func midiPorts(this js.Value, args []js.Value) any {
	ports, err := midiclock.Ports()
	return respond(ports, err)
}

// dispatchTapFinal fires a "quadraTapFinal" event whenever a tap session
// ends, including after the quiet period.
func dispatchTapFinal(est tempo.Estimate, err error) {
	window := js.Global().Get("window")
	if window.IsUndefined() {
		return
	}
	eventInit := js.Global().Get("Object").New()
	eventInit.Set("detail", respond(est, err))
	event := js.Global().Get("CustomEvent").New("quadraTapFinal", eventInit)
	window.Call("dispatchEvent", event)
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 quadra.calc WASM module initializing...")
	}

	var err error
	svc, err = quadracalc.NewService(quadracalc.WithTapListener(dispatchTapFinal))
	if err != nil {
		if !console.IsUndefined() {
			console.Call("error", fmt.Sprintf("❌ Failed to start: %v", err))
		}
		return
	}

	done := make(chan struct{})

	exports := map[string]func(js.Value, []js.Value) any{
		"calculate":         calculate,
		"format":            format,
		"parseRaw":          parseRaw,
		"getBpm":            getBPM,
		"setBpm":            setBPM,
		"nudge":             nudge,
		"halve":             halve,
		"double":            double,
		"tap":               tap,
		"finalize":          finalize,
		"reset":             reset,
		"estimateTaps":      estimateTaps,
		"estimateClock":     estimateClock,
		"presets":           presets,
		"savePreset":        savePreset,
		"loadPreset":        loadPreset,
		"deletePreset":      deletePreset,
		"subdivisions":      subdivisions,
		"addSubdivision":    addSubdivision,
		"removeSubdivision": removeSubdivision,
		"settings":          settings,
		"history":           history,
		"exportJSON":        exportJSON,
		"shareText":         shareText,
		"copyText":          copyText,
		"syncMidi":          syncMidi,
		"midiPorts":         midiPorts,
	}
	api := js.Global().Get("Object").New()
	for name, fn := range exports {
		api.Set(name, js.FuncOf(fn))
	}
	js.Global().Set("quadraCalc", api)

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ quadra.calc WASM module loaded and ready")
	}

	<-done
}
