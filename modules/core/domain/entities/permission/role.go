package permission

// Domain is a data category a role grants access to. Projection rules pick
// the roles whose domain matches the entity being written.
type Domain string

const (
	DomainVaka                Domain = "vaka"
	DomainHuoltajatieto       Domain = "huoltajatieto"
	DomainTyontekija          Domain = "tyontekija"
	DomainTaydennyskoulutus   Domain = "taydennyskoulutus"
	DomainVuokrattuHenkilosto Domain = "vuokrattu"
	DomainTuenTiedot          Domain = "tuen_tiedot"
	DomainToimijatiedot       Domain = "toimijatiedot"
	DomainRaportit            Domain = "raportit"
	DomainLuovutuspalvelu     Domain = "luovutuspalvelu"
)

// Role is an enumerated role assignable to a principal within an operator
// scope. String values are wire-exact: they come from the upstream
// identity provider and form the leading part of group names.
type Role string

const (
	RolePaakayttaja                 Role = "VARDA-PAAKAYTTAJA"
	RoleTallentaja                  Role = "VARDA-TALLENTAJA"
	RoleKatselija                   Role = "VARDA-KATSELIJA"
	RolePalvelukayttaja             Role = "VARDA-PALVELUKAYTTAJA"
	RoleHuoltajatietoTallennus      Role = "HUOLTAJATIETO_TALLENNUS"
	RoleHuoltajatietoKatselu        Role = "HUOLTAJATIETO_KATSELU"
	RoleTyontekijaTallentaja        Role = "HENKILOSTO_TYONTEKIJA_TALLENTAJA"
	RoleTyontekijaKatselija         Role = "HENKILOSTO_TYONTEKIJA_KATSELIJA"
	RoleTaydennyskoulutusTallentaja Role = "HENKILOSTO_TAYDENNYSKOULUTUS_TALLENTAJA"
	RoleTaydennyskoulutusKatselija  Role = "HENKILOSTO_TAYDENNYSKOULUTUS_KATSELIJA"
	RoleVuokrattuTallentaja         Role = "HENKILOSTO_VUOKRATTU_TALLENTAJA"
	RoleVuokrattuKatselija          Role = "HENKILOSTO_VUOKRATTU_KATSELIJA"
	RoleTuenTiedotTallentaja        Role = "TUEN_TIEDOT_TALLENTAJA"
	RoleTuenTiedotKatselija         Role = "TUEN_TIEDOT_KATSELIJA"
	RoleToimijatiedotTallentaja     Role = "VARDA_TOIMIJATIEDOT_TALLENTAJA"
	RoleToimijatiedotKatselija      Role = "VARDA_TOIMIJATIEDOT_KATSELIJA"
	RoleRaporttienKatselija         Role = "VARDA_RAPORTTIEN_KATSELIJA"
	RoleLuovutuspalvelu             Role = "VARDA_LUOVUTUSPALVELU"
	RoleYllapitaja                  Role = "VARDA-YLLAPITAJA"
)

type roleTraits struct {
	domains []Domain
	write   bool
}

// roleCatalog is the single source of truth binding each role to the data
// categories it covers and whether it is recorder-grade.
var roleCatalog = map[Role]roleTraits{
	RolePaakayttaja: {
		domains: []Domain{DomainVaka, DomainHuoltajatieto, DomainTyontekija, DomainTaydennyskoulutus, DomainVuokrattuHenkilosto, DomainTuenTiedot, DomainToimijatiedot, DomainRaportit},
		write:   true,
	},
	RoleTallentaja:      {domains: []Domain{DomainVaka}, write: true},
	RoleKatselija:       {domains: []Domain{DomainVaka}},
	RolePalvelukayttaja: {
		// Machine accounts submit via integration for every category their
		// scope covers; verbs equal the recorder's.
		domains: []Domain{DomainVaka, DomainHuoltajatieto, DomainTyontekija, DomainTaydennyskoulutus, DomainVuokrattuHenkilosto, DomainTuenTiedot, DomainToimijatiedot},
		write:   true,
	},
	RoleHuoltajatietoTallennus:      {domains: []Domain{DomainHuoltajatieto}, write: true},
	RoleHuoltajatietoKatselu:        {domains: []Domain{DomainHuoltajatieto}},
	RoleTyontekijaTallentaja:        {domains: []Domain{DomainTyontekija}, write: true},
	RoleTyontekijaKatselija:         {domains: []Domain{DomainTyontekija}},
	RoleTaydennyskoulutusTallentaja: {domains: []Domain{DomainTaydennyskoulutus}, write: true},
	RoleTaydennyskoulutusKatselija:  {domains: []Domain{DomainTaydennyskoulutus}},
	RoleVuokrattuTallentaja:         {domains: []Domain{DomainVuokrattuHenkilosto}, write: true},
	RoleVuokrattuKatselija:          {domains: []Domain{DomainVuokrattuHenkilosto}},
	RoleTuenTiedotTallentaja:        {domains: []Domain{DomainTuenTiedot}, write: true},
	RoleTuenTiedotKatselija:         {domains: []Domain{DomainTuenTiedot}},
	RoleToimijatiedotTallentaja:     {domains: []Domain{DomainToimijatiedot}, write: true},
	RoleToimijatiedotKatselija:      {domains: []Domain{DomainToimijatiedot}},
	RoleRaporttienKatselija:         {domains: []Domain{DomainRaportit}},
	RoleLuovutuspalvelu:             {domains: []Domain{DomainLuovutuspalvelu}},
	RoleYllapitaja:                  {write: true},
}

// ParseRole maps an upstream oikeus string to a Role. Unknown values are
// rejected so a new upstream role cannot silently widen access.
func ParseRole(s string) (Role, bool) {
	_, ok := roleCatalog[Role(s)]
	return Role(s), ok
}

// Covers reports whether the role grants access to entities of domain d.
func (r Role) Covers(d Domain) bool {
	for _, rd := range roleCatalog[r].domains {
		if rd == d {
			return true
		}
	}
	return false
}

// Write reports whether the role is recorder-grade (add/change/delete in
// addition to view).
func (r Role) Write() bool {
	return roleCatalog[r].write
}

// Verbs returns the object verbs the role receives on entities it covers.
func (r Role) Verbs() []Verb {
	if r.Write() {
		return AllVerbs
	}
	return ReadVerbs
}

// RolesForDomain lists every role covering the domain, in stable order.
func RolesForDomain(d Domain) []Role {
	out := make([]Role, 0, 6)
	for _, r := range allRolesOrdered {
		if r.Covers(d) {
			out = append(out, r)
		}
	}
	return out
}

var allRolesOrdered = []Role{
	RolePaakayttaja,
	RoleTallentaja,
	RoleKatselija,
	RolePalvelukayttaja,
	RoleHuoltajatietoTallennus,
	RoleHuoltajatietoKatselu,
	RoleTyontekijaTallentaja,
	RoleTyontekijaKatselija,
	RoleTaydennyskoulutusTallentaja,
	RoleTaydennyskoulutusKatselija,
	RoleVuokrattuTallentaja,
	RoleVuokrattuKatselija,
	RoleTuenTiedotTallentaja,
	RoleTuenTiedotKatselija,
	RoleToimijatiedotTallentaja,
	RoleToimijatiedotKatselija,
	RoleRaporttienKatselija,
	RoleLuovutuspalvelu,
	RoleYllapitaja,
}
