package container

import (
	"time"

	"github.com/golang/protobuf/proto"

	"telemux/internal/hrtime"
)

// DataStream carries the per-run constant configuration written once at the
// head of every chunk. Waveform scale and offset are carried opaquely; payload
// decoding happens downstream.
type DataStream struct {
	TelId          int32   `protobuf:"varint,1,opt,name=tel_id,json=telId,proto3"`
	SbId           uint64  `protobuf:"varint,2,opt,name=sb_id,json=sbId,proto3"`
	ObsId          uint64  `protobuf:"varint,3,opt,name=obs_id,json=obsId,proto3"`
	WaveformScale  float32 `protobuf:"fixed32,4,opt,name=waveform_scale,json=waveformScale,proto3"`
	WaveformOffset float32 `protobuf:"fixed32,5,opt,name=waveform_offset,json=waveformOffset,proto3"`
	SbCreatorId    uint32  `protobuf:"varint,6,opt,name=sb_creator_id,json=sbCreatorId,proto3"`
}

func (*DataStream) Reset()         {}
func (*DataStream) String() string { return "DataStream" }
func (*DataStream) ProtoMessage()  {}

// CameraConfiguration describes the camera that produced a telescope stream.
type CameraConfiguration struct {
	TelId             int32  `protobuf:"varint,1,opt,name=tel_id,json=telId,proto3"`
	LocalRunId        uint64 `protobuf:"varint,2,opt,name=local_run_id,json=localRunId,proto3"`
	ConfigTimeS       uint32 `protobuf:"varint,3,opt,name=config_time_s,json=configTimeS,proto3"`
	CameraConfigId    uint32 `protobuf:"varint,4,opt,name=camera_config_id,json=cameraConfigId,proto3"`
	NumPixels         uint32 `protobuf:"varint,5,opt,name=num_pixels,json=numPixels,proto3"`
	NumChannels       uint32 `protobuf:"varint,6,opt,name=num_channels,json=numChannels,proto3"`
	NumSamplesNominal uint32 `protobuf:"varint,7,opt,name=num_samples_nominal,json=numSamplesNominal,proto3"`
	NumModules        uint32 `protobuf:"varint,8,opt,name=num_modules,json=numModules,proto3"`
	SamplingFrequency uint32 `protobuf:"varint,9,opt,name=sampling_frequency,json=samplingFrequency,proto3"`
	PixelIdMap        []byte `protobuf:"bytes,10,opt,name=pixel_id_map,json=pixelIdMap,proto3"`
	ModuleIdMap       []byte `protobuf:"bytes,11,opt,name=module_id_map,json=moduleIdMap,proto3"`
}

func (*CameraConfiguration) Reset()         {}
func (*CameraConfiguration) String() string { return "CameraConfiguration" }
func (*CameraConfiguration) ProtoMessage()  {}

// TelescopeEvent is one per-telescope record. The waveform stays opaque at
// this layer.
type TelescopeEvent struct {
	EventId           uint64 `protobuf:"varint,1,opt,name=event_id,json=eventId,proto3"`
	TelId             int32  `protobuf:"varint,2,opt,name=tel_id,json=telId,proto3"`
	EventTypeCode     uint32 `protobuf:"varint,3,opt,name=event_type_code,json=eventTypeCode,proto3"`
	EventTimeS        uint32 `protobuf:"varint,4,opt,name=event_time_s,json=eventTimeS,proto3"`
	EventTimeQns      uint32 `protobuf:"varint,5,opt,name=event_time_qns,json=eventTimeQns,proto3"`
	PixelStatus       []byte `protobuf:"bytes,6,opt,name=pixel_status,json=pixelStatus,proto3"`
	Waveform          []byte `protobuf:"bytes,7,opt,name=waveform,proto3"`
	NumChannels       uint32 `protobuf:"varint,8,opt,name=num_channels,json=numChannels,proto3"`
	NumSamples        uint32 `protobuf:"varint,9,opt,name=num_samples,json=numSamples,proto3"`
	NumPixelsSurvived uint32 `protobuf:"varint,10,opt,name=num_pixels_survived,json=numPixelsSurvived,proto3"`
}

func (*TelescopeEvent) Reset()         {}
func (*TelescopeEvent) String() string { return "TelescopeEvent" }
func (*TelescopeEvent) ProtoMessage()  {}

// EventID returns the ordering and correlation key.
func (e *TelescopeEvent) EventID() uint64 { return e.EventId }

// EventTime converts the embedded high resolution timestamp.
func (e *TelescopeEvent) EventTime() time.Time {
	return hrtime.HighRes{Seconds: e.EventTimeS, QuarterNs: e.EventTimeQns}.Time()
}

// SubarrayEvent is one subarray trigger record. TelIdsWithTrigger names the
// telescopes that participated in the trigger decision; TelIdsWithData names
// those expected to have written a matching telescope record.
type SubarrayEvent struct {
	EventId           uint64  `protobuf:"varint,1,opt,name=event_id,json=eventId,proto3"`
	TriggerType       uint32  `protobuf:"varint,2,opt,name=trigger_type,json=triggerType,proto3"`
	SbId              uint64  `protobuf:"varint,3,opt,name=sb_id,json=sbId,proto3"`
	ObsId             uint64  `protobuf:"varint,4,opt,name=obs_id,json=obsId,proto3"`
	EventTimeS        uint32  `protobuf:"varint,5,opt,name=event_time_s,json=eventTimeS,proto3"`
	EventTimeQns      uint32  `protobuf:"varint,6,opt,name=event_time_qns,json=eventTimeQns,proto3"`
	TelIdsWithTrigger []int32 `protobuf:"varint,7,rep,packed,name=tel_ids_with_trigger,json=telIdsWithTrigger,proto3"`
	TelIdsWithData    []int32 `protobuf:"varint,8,rep,packed,name=tel_ids_with_data,json=telIdsWithData,proto3"`
}

func (*SubarrayEvent) Reset()         {}
func (*SubarrayEvent) String() string { return "SubarrayEvent" }
func (*SubarrayEvent) ProtoMessage()  {}

// EventID returns the ordering and correlation key.
func (e *SubarrayEvent) EventID() uint64 { return e.EventId }

// EventTime converts the embedded high resolution timestamp.
func (e *SubarrayEvent) EventTime() time.Time {
	return hrtime.HighRes{Seconds: e.EventTimeS, QuarterNs: e.EventTimeQns}.Time()
}

func marshalMessage(msg proto.Message) ([]byte, error) { return proto.Marshal(msg) }
