package filterbank

const (
	StartSentinel = "HEADER_START"
	EndSentinel   = "HEADER_END"
)

// Well-known field names.
const (
	FieldTelescopeID   = "telescope_id"
	FieldMachineID     = "machine_id"
	FieldDataType      = "data_type"
	FieldBarycentric   = "barycentric"
	FieldPulsarcentric = "pulsarcentric"
	FieldNBits         = "nbits"
	FieldNSamples      = "nsamples"
	FieldNChans        = "nchans"
	FieldNIFs          = "nifs"
	FieldRawDataFile   = "rawdatafile"
	FieldSourceName    = "source_name"
	FieldAzStart       = "az_start"
	FieldZaStart       = "za_start"
	FieldSrcRaj        = "src_raj"
	FieldSrcDej        = "src_dej"
	FieldTStart        = "tstart"
	FieldTSamp         = "tsamp"
	FieldFch1          = "fch1"
	FieldFoff          = "foff"
	FieldFChannel      = "fchannel"
	FieldRefDM         = "refdm"
	FieldPeriod        = "period"
)

// fieldKinds is the only source of truth for value types. Both the encoder
// and the decoder consult it, which is what keeps them inverse to each other.
var fieldKinds = map[string]Kind{
	FieldTelescopeID:   KindUint32,
	FieldMachineID:     KindUint32,
	FieldDataType:      KindUint32,
	FieldBarycentric:   KindUint32,
	FieldPulsarcentric: KindUint32,
	FieldNBits:         KindUint32,
	FieldNSamples:      KindUint32,
	FieldNChans:        KindUint32,
	FieldNIFs:          KindUint32,

	FieldRawDataFile: KindString,
	FieldSourceName:  KindString,

	FieldAzStart:  KindFloat64,
	FieldZaStart:  KindFloat64,
	FieldSrcRaj:   KindFloat64,
	FieldSrcDej:   KindFloat64,
	FieldTStart:   KindFloat64,
	FieldTSamp:    KindFloat64,
	FieldFch1:     KindFloat64,
	FieldFoff:     KindFloat64,
	FieldFChannel: KindFloat64,
	FieldRefDM:    KindFloat64,
	FieldPeriod:   KindFloat64,
}

// KindOf returns the wire type registered for name.
func KindOf(name string) (Kind, bool) {
	k, ok := fieldKinds[name]
	return k, ok
}
