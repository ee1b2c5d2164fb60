package catalog

// staticMetadata holds the fields that do not change between releases. The
// manifest only supplies identity, version, URL and checksum.
var staticMetadata = map[PackageID]Package{
	Apache: {
		Name:                "Apache HTTP Server",
		Kind:                ArchiveZip,
		EstimatedSizeBytes:  12 << 20,
		Description:         "Web server",
		RelativeInstallPath: "apps/apache",
		Markers:             []string{"httpd", "ApacheMonitor"},
	},
	MariaDB: {
		Name:                "MariaDB",
		Kind:                ArchiveZip,
		EstimatedSizeBytes:  90 << 20,
		Description:         "Database server",
		RelativeInstallPath: "apps/mariadb",
		Markers:             []string{"mysqld", "mysql"},
	},
	PHP: {
		Name:                "PHP",
		Kind:                ArchiveZip,
		EstimatedSizeBytes:  32 << 20,
		Description:         "Scripting runtime",
		RelativeInstallPath: "apps/php",
		Dependencies:        []PackageID{Apache},
		Markers:             []string{"php", "php-cgi"},
	},
	PhpMyAdmin: {
		Name:                "phpMyAdmin",
		Kind:                ArchiveZip,
		EstimatedSizeBytes:  15 << 20,
		Description:         "Database administration tool",
		RelativeInstallPath: "apps/phpmyadmin",
		Dependencies:        []PackageID{PHP, MariaDB},
		Markers:             []string{"index.php", "config.sample.inc.php"},
	},
	Xdebug: {
		Name:                "Xdebug",
		Kind:                ArchiveSingleBinary,
		EstimatedSizeBytes:  400 << 10,
		Description:         "PHP debugging extension",
		RelativeInstallPath: "apps/php/ext",
		Dependencies:        []PackageID{PHP},
		Placement:           PlaceSingleFile,
		Artifact:            ArtifactRetain,
		Optional:            true,
	},
	Composer: {
		Name:                "Composer",
		Kind:                ArchivePhar,
		EstimatedSizeBytes:  3 << 20,
		Description:         "PHP dependency manager",
		RelativeInstallPath: "apps/composer",
		Dependencies:        []PackageID{PHP},
		Markers:             []string{"composer.phar"},
		Placement:           PlaceSingleFile,
		Artifact:            ArtifactRelocated,
		Optional:            true,
	},
	ControlPanel: {
		Name:                "Control Panel",
		Kind:                ArchiveZip,
		EstimatedSizeBytes:  8 << 20,
		Description:         "Service control panel",
		RelativeInstallPath: "",
		Markers:             []string{"stack-control-panel"},
		Placement:           PlaceMergeRoot,
		Optional:            true,
	},
	VCRuntime: {
		Name:                "Visual C++ Runtime",
		Kind:                ArchiveRuntimeBundle,
		EstimatedSizeBytes:  2 << 20,
		Description:         "Shared C runtime libraries",
		RelativeInstallPath: "apps/vcruntime",
		InstallAfter:        []PackageID{Apache, MariaDB, PHP},
		Markers:             []string{"vcruntime140.dll"},
		CopyTargets:         []string{"apps/php", "apps/mariadb/bin", "apps/apache/bin"},
	},
}

// Static returns the static metadata for id.
func Static(id PackageID) (Package, bool) {
	p, ok := staticMetadata[id]
	if !ok {
		return Package{}, false
	}
	p.ID = id
	return p.Clone(), true
}
