package carddav

const (
	MethodPropfind = "PROPFIND"
	// MethodReport is reserved for addressbook-multiget.
	MethodReport = "REPORT"
)

// PROPFIND bodies, one per property query.
const (
	currentUserPrincipalRequest = `<D:propfind xmlns:D="DAV:"><D:prop><D:current-user-principal/></D:prop></D:propfind>`
	addressbookHomeSetRequest   = `<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:carddav"><D:prop><C:addressbook-home-set/></D:prop></D:propfind>`
	resourceTypeRequest         = `<D:propfind xmlns:D="DAV:"><D:prop><D:resourcetype/></D:prop></D:propfind>`
	cardStatRequest             = `<D:propfind xmlns:D="DAV:"><D:prop><D:getetag/><D:getlastmodified/></D:prop></D:propfind>`
	ctagRequest                 = `<D:propfind xmlns:D="DAV:" xmlns:CS="http://calendarserver.org/ns/"><D:prop><CS:getctag/></D:prop></D:propfind>`
)

type HrefProp struct {
	Href Href `xml:"DAV: href"`
}

type CurrentUserPrincipalProp struct {
	CurrentUserPrincipal *HrefProp `xml:"DAV: current-user-principal"`
}

type AddressbookHomeSetProp struct {
	AddressbookHomeSet *HrefProp `xml:"urn:ietf:params:xml:ns:carddav addressbook-home-set"`
}

// ResourceType only records the markers a client cares about. Presence of
// the element is what counts, hence the pointers.
type ResourceType struct {
	Collection  *struct{} `xml:"DAV: collection"`
	Addressbook *struct{} `xml:"urn:ietf:params:xml:ns:carddav addressbook"`
}

type ResourceTypeProp struct {
	ResourceType ResourceType `xml:"DAV: resourcetype"`
}

type AddressDataProp struct {
	AddressData  string        `xml:"urn:ietf:params:xml:ns:carddav address-data"`
	Etag         Etag          `xml:"DAV: getetag"`
	LastModified *LastModified `xml:"DAV: getlastmodified"`
}

type CtagProp struct {
	Ctag Ctag `xml:"http://calendarserver.org/ns/ getctag"`
}
