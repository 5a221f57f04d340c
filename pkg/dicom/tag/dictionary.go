package tag

import "github.com/jpfielding/dicom.go/pkg/dicom/vr"

type entry struct {
	vr   vr.VR
	name string
}

var dictionary = map[Tag]entry{
	CommandGroupLength:                   {vr.UL, "CommandGroupLength"},
	AffectedSOPClassUID:                  {vr.UI, "AffectedSOPClassUID"},
	RequestedSOPClassUID:                 {vr.UI, "RequestedSOPClassUID"},
	CommandField:                         {vr.US, "CommandField"},
	MessageID:                            {vr.US, "MessageID"},
	MessageIDBeingRespondedTo:            {vr.US, "MessageIDBeingRespondedTo"},
	MoveDestination:                      {vr.AE, "MoveDestination"},
	Priority:                             {vr.US, "Priority"},
	CommandDataSetType:                   {vr.US, "CommandDataSetType"},
	Status:                               {vr.US, "Status"},
	ErrorComment:                         {vr.LO, "ErrorComment"},
	AffectedSOPInstanceUID:               {vr.UI, "AffectedSOPInstanceUID"},
	RequestedSOPInstanceUID:              {vr.UI, "RequestedSOPInstanceUID"},
	NumberOfRemainingSuboperations:       {vr.US, "NumberOfRemainingSuboperations"},
	NumberOfCompletedSuboperations:       {vr.US, "NumberOfCompletedSuboperations"},
	NumberOfFailedSuboperations:          {vr.US, "NumberOfFailedSuboperations"},
	NumberOfWarningSuboperations:         {vr.US, "NumberOfWarningSuboperations"},
	MoveOriginatorApplicationEntityTitle: {vr.AE, "MoveOriginatorApplicationEntityTitle"},
	MoveOriginatorMessageID:              {vr.US, "MoveOriginatorMessageID"},

	FileMetaInformationGroupLength: {vr.UL, "FileMetaInformationGroupLength"},
	FileMetaInformationVersion:     {vr.OB, "FileMetaInformationVersion"},
	MediaStorageSOPClassUID:        {vr.UI, "MediaStorageSOPClassUID"},
	MediaStorageSOPInstanceUID:     {vr.UI, "MediaStorageSOPInstanceUID"},
	TransferSyntaxUID:              {vr.UI, "TransferSyntaxUID"},
	ImplementationClassUID:         {vr.UI, "ImplementationClassUID"},
	ImplementationVersionName:      {vr.SH, "ImplementationVersionName"},
	SourceApplicationEntityTitle:   {vr.AE, "SourceApplicationEntityTitle"},
	SpecificCharacterSet:           {vr.CS, "SpecificCharacterSet"},

	PatientName:             {vr.PN, "PatientName"},
	PatientID:               {vr.LO, "PatientID"},
	IssuerOfPatientID:       {vr.LO, "IssuerOfPatientID"},
	PatientBirthDate:        {vr.DA, "PatientBirthDate"},
	PatientBirthTime:        {vr.TM, "PatientBirthTime"},
	PatientSex:              {vr.CS, "PatientSex"},
	OtherPatientIDs:         {vr.LO, "OtherPatientIDs"},
	OtherPatientNames:       {vr.PN, "OtherPatientNames"},
	PatientAge:              {vr.AS, "PatientAge"},
	PatientSize:             {vr.DS, "PatientSize"},
	PatientWeight:           {vr.DS, "PatientWeight"},
	PatientAddress:          {vr.LO, "PatientAddress"},
	PatientMotherBirthName:  {vr.PN, "PatientMotherBirthName"},
	PatientTelephoneNumbers: {vr.SH, "PatientTelephoneNumbers"},
	EthnicGroup:             {vr.SH, "EthnicGroup"},
	PatientComments:         {vr.LT, "PatientComments"},

	StudyDate:                     {vr.DA, "StudyDate"},
	StudyTime:                     {vr.TM, "StudyTime"},
	AccessionNumber:               {vr.SH, "AccessionNumber"},
	ReferringPhysicianName:        {vr.PN, "ReferringPhysicianName"},
	StudyDescription:              {vr.LO, "StudyDescription"},
	PhysiciansOfRecord:            {vr.PN, "PhysiciansOfRecord"},
	NameOfPhysiciansReadingStudy:  {vr.PN, "NameOfPhysiciansReadingStudy"},
	StudyInstanceUID:              {vr.UI, "StudyInstanceUID"},
	StudyID:                       {vr.SH, "StudyID"},
	NumberOfStudyRelatedSeries:    {vr.IS, "NumberOfStudyRelatedSeries"},
	NumberOfStudyRelatedInstances: {vr.IS, "NumberOfStudyRelatedInstances"},

	Modality:                       {vr.CS, "Modality"},
	SeriesInstanceUID:              {vr.UI, "SeriesInstanceUID"},
	SeriesNumber:                   {vr.IS, "SeriesNumber"},
	AcquisitionNumber:              {vr.IS, "AcquisitionNumber"},
	InstanceNumber:                 {vr.IS, "InstanceNumber"},
	SeriesDescription:              {vr.LO, "SeriesDescription"},
	SeriesDate:                     {vr.DA, "SeriesDate"},
	AcquisitionDate:                {vr.DA, "AcquisitionDate"},
	ContentDate:                    {vr.DA, "ContentDate"},
	SeriesTime:                     {vr.TM, "SeriesTime"},
	AcquisitionTime:                {vr.TM, "AcquisitionTime"},
	ContentTime:                    {vr.TM, "ContentTime"},
	AcquisitionDateTime:            {vr.DT, "AcquisitionDateTime"},
	OperatorsName:                  {vr.PN, "OperatorsName"},
	PerformingPhysicianName:        {vr.PN, "PerformingPhysicianName"},
	NumberOfSeriesRelatedInstances: {vr.IS, "NumberOfSeriesRelatedInstances"},
	FrameOfReferenceUID:            {vr.UI, "FrameOfReferenceUID"},

	Manufacturer:                {vr.LO, "Manufacturer"},
	InstitutionName:             {vr.LO, "InstitutionName"},
	InstitutionAddress:          {vr.ST, "InstitutionAddress"},
	StationName:                 {vr.SH, "StationName"},
	InstitutionalDepartmentName: {vr.LO, "InstitutionalDepartmentName"},
	ManufacturerModelName:       {vr.LO, "ManufacturerModelName"},
	DeviceSerialNumber:          {vr.LO, "DeviceSerialNumber"},
	SoftwareVersions:            {vr.LO, "SoftwareVersions"},

	SOPClassUID:              {vr.UI, "SOPClassUID"},
	SOPInstanceUID:           {vr.UI, "SOPInstanceUID"},
	InstanceCreationDate:     {vr.DA, "InstanceCreationDate"},
	InstanceCreationTime:     {vr.TM, "InstanceCreationTime"},
	InstanceCreatorUID:       {vr.UI, "InstanceCreatorUID"},
	ImageType:                {vr.CS, "ImageType"},
	QueryRetrieveLevel:       {vr.CS, "QueryRetrieveLevel"},
	RetrieveAETitle:          {vr.AE, "RetrieveAETitle"},
	ReferencedSOPClassUID:    {vr.UI, "ReferencedSOPClassUID"},
	ReferencedSOPInstanceUID: {vr.UI, "ReferencedSOPInstanceUID"},
	ReferencedImageSequence:  {vr.SQ, "ReferencedImageSequence"},
	ReferencedStudySequence:  {vr.SQ, "ReferencedStudySequence"},

	BodyPartExamined:        {vr.CS, "BodyPartExamined"},
	SliceThickness:          {vr.DS, "SliceThickness"},
	KVP:                     {vr.DS, "KVP"},
	ProtocolName:            {vr.LO, "ProtocolName"},
	ImagePositionPatient:    {vr.DS, "ImagePositionPatient"},
	ImageOrientationPatient: {vr.DS, "ImageOrientationPatient"},
	ImageComments:           {vr.LT, "ImageComments"},
	SliceLocation:           {vr.DS, "SliceLocation"},

	SamplesPerPixel:           {vr.US, "SamplesPerPixel"},
	PhotometricInterpretation: {vr.CS, "PhotometricInterpretation"},
	NumberOfFrames:            {vr.IS, "NumberOfFrames"},
	Rows:                      {vr.US, "Rows"},
	Columns:                   {vr.US, "Columns"},
	PixelSpacing:              {vr.DS, "PixelSpacing"},
	BitsAllocated:             {vr.US, "BitsAllocated"},
	BitsStored:                {vr.US, "BitsStored"},
	HighBit:                   {vr.US, "HighBit"},
	PixelRepresentation:       {vr.US, "PixelRepresentation"},
	WindowCenter:              {vr.DS, "WindowCenter"},
	WindowWidth:               {vr.DS, "WindowWidth"},
	RescaleIntercept:          {vr.DS, "RescaleIntercept"},
	RescaleSlope:              {vr.DS, "RescaleSlope"},
	PixelData:                 {vr.OW, "PixelData"},
}

var byName = func() map[string]Tag {
	m := make(map[string]Tag, len(dictionary))
	for t, e := range dictionary {
		m[e.name] = t
	}
	return m
}()

// LookupVR returns the default VR for a tag as used by implicit VR syntaxes.
// Group lengths resolve to UL and private creator elements to LO; ok is false
// for anything else the dictionary does not know.
func LookupVR(t Tag) (vr.VR, bool) {
	if e, ok := dictionary[t]; ok {
		return e.vr, true
	}
	switch {
	case t.IsDelimiter():
		return vr.Null, true
	case t.IsGroupLength():
		return vr.UL, true
	case t.IsPrivate() && t.Element >= 0x0010 && t.Element <= 0x00FF:
		return vr.LO, true
	}
	return vr.UN, false
}

// ByName finds a tag by its dictionary keyword.
func ByName(name string) (Tag, bool) {
	t, ok := byName[name]
	return t, ok
}
