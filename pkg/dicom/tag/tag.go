// Package tag defines standard DICOM tags and the data dictionary
package tag

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// FromUint32 builds a Tag from its packed GGGGEEEE form.
func FromUint32(v uint32) Tag {
	return Tag{Group: uint16(v >> 16), Element: uint16(v)}
}

// Uint32 returns the packed GGGGEEEE form of the tag.
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// Equals compares two tags
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

// Compare orders tags by group then element, returning -1, 0 or 1.
func (t Tag) Compare(other Tag) int {
	a, b := t.Uint32(), other.Uint32()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Less reports whether t sorts before other.
func (t Tag) Less(other Tag) bool {
	return t.Compare(other) < 0
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsGroup0002 returns true if this tag is in the File Meta Information group
func (t Tag) IsGroup0002() bool {
	return t.Group == 0x0002
}

// IsCommand returns true for DIMSE command group tags
func (t Tag) IsCommand() bool {
	return t.Group == 0x0000
}

// IsDelimiter returns true for the item and sequence delimitation tags, which
// never carry a VR on the wire.
func (t Tag) IsDelimiter() bool {
	return t.Group == 0xFFFE
}

// IsGroupLength returns true for (gggg,0000) group length tags
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

// Item and sequence delimiters
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)

// Command Group (Group 0000)
var (
	CommandGroupLength                   = Tag{0x0000, 0x0000} // UL
	AffectedSOPClassUID                  = Tag{0x0000, 0x0002} // UI
	RequestedSOPClassUID                 = Tag{0x0000, 0x0003} // UI
	CommandField                         = Tag{0x0000, 0x0100} // US
	MessageID                            = Tag{0x0000, 0x0110} // US
	MessageIDBeingRespondedTo            = Tag{0x0000, 0x0120} // US
	MoveDestination                      = Tag{0x0000, 0x0600} // AE
	Priority                             = Tag{0x0000, 0x0700} // US
	CommandDataSetType                   = Tag{0x0000, 0x0800} // US
	Status                               = Tag{0x0000, 0x0900} // US
	ErrorComment                         = Tag{0x0000, 0x0902} // LO
	AffectedSOPInstanceUID               = Tag{0x0000, 0x1000} // UI
	RequestedSOPInstanceUID              = Tag{0x0000, 0x1001} // UI
	NumberOfRemainingSuboperations       = Tag{0x0000, 0x1020} // US
	NumberOfCompletedSuboperations       = Tag{0x0000, 0x1021} // US
	NumberOfFailedSuboperations          = Tag{0x0000, 0x1022} // US
	NumberOfWarningSuboperations         = Tag{0x0000, 0x1023} // US
	MoveOriginatorApplicationEntityTitle = Tag{0x0000, 0x1030} // AE
	MoveOriginatorMessageID              = Tag{0x0000, 0x1031} // US
)

// Standard DICOM Tags - File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
	SourceApplicationEntityTitle   = Tag{0x0002, 0x0016}
	SpecificCharacterSet           = Tag{0x0008, 0x0005}
)

// Patient Module (Group 0010)
var (
	PatientName             = Tag{0x0010, 0x0010}
	PatientID               = Tag{0x0010, 0x0020}
	IssuerOfPatientID       = Tag{0x0010, 0x0021}
	PatientBirthDate        = Tag{0x0010, 0x0030}
	PatientBirthTime        = Tag{0x0010, 0x0032}
	PatientSex              = Tag{0x0010, 0x0040}
	OtherPatientIDs         = Tag{0x0010, 0x1000}
	OtherPatientNames       = Tag{0x0010, 0x1001}
	PatientAge              = Tag{0x0010, 0x1010}
	PatientSize             = Tag{0x0010, 0x1020}
	PatientWeight           = Tag{0x0010, 0x1030}
	PatientAddress          = Tag{0x0010, 0x1040}
	PatientMotherBirthName  = Tag{0x0010, 0x1060}
	PatientTelephoneNumbers = Tag{0x0010, 0x2154}
	EthnicGroup             = Tag{0x0010, 0x2160}
	PatientComments         = Tag{0x0010, 0x4000}
)

// General Study Module (Group 0008, 0020)
var (
	StudyDate                     = Tag{0x0008, 0x0020}
	StudyTime                     = Tag{0x0008, 0x0030}
	AccessionNumber               = Tag{0x0008, 0x0050}
	ReferringPhysicianName        = Tag{0x0008, 0x0090}
	StudyDescription              = Tag{0x0008, 0x1030}
	PhysiciansOfRecord            = Tag{0x0008, 0x1048}
	NameOfPhysiciansReadingStudy  = Tag{0x0008, 0x1060}
	StudyInstanceUID              = Tag{0x0020, 0x000D}
	StudyID                       = Tag{0x0020, 0x0010}
	NumberOfStudyRelatedSeries    = Tag{0x0020, 0x1206}
	NumberOfStudyRelatedInstances = Tag{0x0020, 0x1208}
)

// General Series Module
var (
	Modality                       = Tag{0x0008, 0x0060}
	SeriesInstanceUID              = Tag{0x0020, 0x000E}
	SeriesNumber                   = Tag{0x0020, 0x0011}
	AcquisitionNumber              = Tag{0x0020, 0x0012}
	InstanceNumber                 = Tag{0x0020, 0x0013}
	SeriesDescription              = Tag{0x0008, 0x103E}
	SeriesDate                     = Tag{0x0008, 0x0021}
	AcquisitionDate                = Tag{0x0008, 0x0022}
	ContentDate                    = Tag{0x0008, 0x0023}
	SeriesTime                     = Tag{0x0008, 0x0031}
	AcquisitionTime                = Tag{0x0008, 0x0032}
	ContentTime                    = Tag{0x0008, 0x0033}
	AcquisitionDateTime            = Tag{0x0008, 0x002A}
	OperatorsName                  = Tag{0x0008, 0x1070}
	PerformingPhysicianName        = Tag{0x0008, 0x1050}
	NumberOfSeriesRelatedInstances = Tag{0x0020, 0x1209}
	FrameOfReferenceUID            = Tag{0x0020, 0x0052}
)

// General Equipment Module
var (
	Manufacturer                = Tag{0x0008, 0x0070}
	InstitutionName             = Tag{0x0008, 0x0080}
	InstitutionAddress          = Tag{0x0008, 0x0081}
	StationName                 = Tag{0x0008, 0x1010}
	InstitutionalDepartmentName = Tag{0x0008, 0x1040}
	ManufacturerModelName       = Tag{0x0008, 0x1090}
	DeviceSerialNumber          = Tag{0x0018, 0x1000}
	SoftwareVersions            = Tag{0x0018, 0x1020}
)

// SOP Common Module
var (
	SOPClassUID              = Tag{0x0008, 0x0016}
	SOPInstanceUID           = Tag{0x0008, 0x0018}
	InstanceCreationDate     = Tag{0x0008, 0x0012}
	InstanceCreationTime     = Tag{0x0008, 0x0013}
	InstanceCreatorUID       = Tag{0x0008, 0x0014}
	ImageType                = Tag{0x0008, 0x0008}
	QueryRetrieveLevel       = Tag{0x0008, 0x0052}
	RetrieveAETitle          = Tag{0x0008, 0x0054}
	ReferencedSOPClassUID    = Tag{0x0008, 0x1150}
	ReferencedSOPInstanceUID = Tag{0x0008, 0x1155}
	ReferencedImageSequence  = Tag{0x0008, 0x1140}
	ReferencedStudySequence  = Tag{0x0008, 0x1110}
)

// Acquisition and image plane attributes
var (
	BodyPartExamined        = Tag{0x0018, 0x0015}
	SliceThickness          = Tag{0x0018, 0x0050}
	KVP                     = Tag{0x0018, 0x0060}
	ProtocolName            = Tag{0x0018, 0x1030}
	ImagePositionPatient    = Tag{0x0020, 0x0032}
	ImageOrientationPatient = Tag{0x0020, 0x0037}
	ImageComments           = Tag{0x0020, 0x4000}
	SliceLocation           = Tag{0x0020, 0x1041}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel           = Tag{0x0028, 0x0002}
	PhotometricInterpretation = Tag{0x0028, 0x0004}
	NumberOfFrames            = Tag{0x0028, 0x0008}
	Rows                      = Tag{0x0028, 0x0010}
	Columns                   = Tag{0x0028, 0x0011}
	PixelSpacing              = Tag{0x0028, 0x0030}
	BitsAllocated             = Tag{0x0028, 0x0100}
	BitsStored                = Tag{0x0028, 0x0101}
	HighBit                   = Tag{0x0028, 0x0102}
	PixelRepresentation       = Tag{0x0028, 0x0103}
	WindowCenter              = Tag{0x0028, 0x1050}
	WindowWidth               = Tag{0x0028, 0x1051}
	RescaleIntercept          = Tag{0x0028, 0x1052}
	RescaleSlope              = Tag{0x0028, 0x1053}
	PixelData                 = Tag{0x7FE0, 0x0010}
)

// LookupName returns the dictionary keyword for the tag, or "" when unknown
func (t Tag) LookupName() string {
	if e, ok := dictionary[t]; ok {
		return e.name
	}
	return ""
}
