package model

// DispatchName is the reserved host binding through which synthesized
// programs drive invocation bookkeeping: current-module attribution and
// output snapshot reads. It is never handed to a config function, and the
// parser rejects any config source containing the name, so user code can
// neither receive nor address it.
const DispatchName = "__mf"
